package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: port}
}

// ============================================================================
// Admission Tests
// ============================================================================

func TestAdmit(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	now := time.Now()

	res, idx := r.Admit(testAddr(5000), now)
	require.Equal(t, AdmitAdded, res)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, r.Count())

	ok := r.WithIndex(idx, func(s *Session) {
		assert.Equal(t, uint32(2), s.RecvSeq)
		assert.Equal(t, uint32(1), s.SendSeq)
		assert.Len(t, s.Token, 4)
		assert.True(t, s.Active)
		assert.Equal(t, NoGame, s.GameIndex)
	})
	assert.True(t, ok)
}

func TestAdmitDuplicateAddress(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	now := time.Now()

	_, first := r.Admit(testAddr(5000), now)
	res, idx := r.Admit(testAddr(5000), now)

	assert.Equal(t, AdmitExisting, res)
	assert.Equal(t, first, idx)
	assert.Equal(t, 1, r.Count())
}

func TestAdmitFull(t *testing.T) {
	t.Parallel()

	r := NewRegistry(2, 4, 0, 0, nil)
	now := time.Now()

	r.Admit(testAddr(5000), now)
	r.Admit(testAddr(5001), now)

	res, _ := r.Admit(testAddr(5002), now)
	assert.Equal(t, AdmitFull, res)
}

func TestAdmitRateLimited(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, 4, 1, 1, nil)
	now := time.Now()

	res, _ := r.Admit(testAddr(5000), now)
	require.Equal(t, AdmitAdded, res)

	// Burst of 1 exhausted; next fresh address is rejected.
	res, _ = r.Admit(testAddr(5001), now)
	assert.Equal(t, AdmitLimited, res)

	// Duplicate of an admitted address is not subject to the limiter.
	res, _ = r.Admit(testAddr(5000), now)
	assert.Equal(t, AdmitExisting, res)
}

func TestSlotReuse(t *testing.T) {
	t.Parallel()

	r := NewRegistry(2, 4, 0, 0, nil)
	now := time.Now()

	_, a := r.Admit(testAddr(5000), now)
	r.Admit(testAddr(5001), now)

	require.True(t, r.Remove(a, "close"))

	res, idx := r.Admit(testAddr(5002), now)
	assert.Equal(t, AdmitAdded, res)
	assert.Equal(t, a, idx, "freed slot should be reused")
}

// ============================================================================
// Lookup Tests
// ============================================================================

func TestLookups(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	now := time.Now()

	_, idx := r.Admit(testAddr(5000), now)

	var token string
	r.WithIndex(idx, func(s *Session) { token = s.Token })

	gotIdx, ok := r.IndexByAddr(testAddr(5000).String())
	assert.True(t, ok)
	assert.Equal(t, idx, gotIdx)

	gotIdx, ok = r.IndexByToken(token)
	assert.True(t, ok)
	assert.Equal(t, idx, gotIdx)

	_, ok = r.IndexByToken("nope")
	assert.False(t, ok)

	_, ok = r.IndexByAddr("1.2.3.4:9")
	assert.False(t, ok)
}

func TestWithIndexMisses(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)

	assert.False(t, r.WithIndex(-1, func(*Session) {}))
	assert.False(t, r.WithIndex(99, func(*Session) {}))
	assert.False(t, r.WithIndex(0, func(*Session) {}))
}

// ============================================================================
// Rebind and Remove Tests
// ============================================================================

func TestRebind(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	now := time.Now()

	_, idx := r.Admit(testAddr(5000), now)
	newAddr := testAddr(6000)

	require.True(t, r.Rebind(idx, newAddr))

	_, ok := r.IndexByAddr(testAddr(5000).String())
	assert.False(t, ok, "old address should be unbound")

	gotIdx, ok := r.IndexByAddr(newAddr.String())
	require.True(t, ok)
	assert.Equal(t, idx, gotIdx)

	r.WithIndex(idx, func(s *Session) {
		assert.Equal(t, newAddr.String(), s.AddrKey)
	})
}

func TestRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	now := time.Now()

	_, idx := r.Admit(testAddr(5000), now)
	var token string
	r.WithIndex(idx, func(s *Session) { token = s.Token })

	require.True(t, r.Remove(idx, "close"))
	assert.Equal(t, 0, r.Count())

	assert.False(t, r.WithIndex(idx, func(*Session) {}))
	_, ok := r.IndexByToken(token)
	assert.False(t, ok)

	assert.False(t, r.Remove(idx, "close"), "double remove should report false")
}

func TestIndices(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	now := time.Now()

	r.Admit(testAddr(5000), now)
	_, b := r.Admit(testAddr(5001), now)
	r.Admit(testAddr(5002), now)
	r.Remove(b, "close")

	assert.ElementsMatch(t, []int{0, 2}, r.Indices())
}

// ============================================================================
// Stream State Tests
// ============================================================================

func TestEnqueueAssignsSequence(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	_, idx := r.Admit(testAddr(5000), time.Now())

	r.WithIndex(idx, func(s *Session) {
		s.Enqueue("RECONNECT_CODE;abcd")
		s.Enqueue("GAME_CREATED;QWERT;35999")

		require.Equal(t, 2, s.Queue.Len())
		assert.Equal(t, uint32(1), s.Queue.Head().Seq)
		assert.Equal(t, uint32(3), s.SendSeq)

		head := s.Queue.Pop()
		assert.Equal(t, "RECONNECT_CODE;abcd", head.Payload)
		assert.Equal(t, uint32(2), s.Queue.Head().Seq)
	})
}

func TestResetStream(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4, 4, 0, 0, nil)
	_, idx := r.Admit(testAddr(5000), time.Now())

	r.WithIndex(idx, func(s *Session) {
		s.Enqueue("PLAYING_INDEX;0;45")
		s.RecvSeq = 17
		s.SendSeq = 9

		s.ResetStream()

		assert.Equal(t, uint32(2), s.RecvSeq)
		assert.Equal(t, uint32(1), s.SendSeq)
		assert.Equal(t, 0, s.Queue.Len())
	})
}

func TestQueueDrainAndPopEmpty(t *testing.T) {
	t.Parallel()

	var q Queue
	assert.Nil(t, q.Head())
	assert.Nil(t, q.Pop())

	q.Push(&Outbound{Seq: 1, Payload: "a"})
	q.Push(&Outbound{Seq: 2, Payload: "b"})
	q.Drain()
	assert.Equal(t, 0, q.Len())
}

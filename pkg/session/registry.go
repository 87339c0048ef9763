package session

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/feelus/cns-server/pkg/metrics"
)

// AdmitResult describes the outcome of a CONNECT admission attempt.
type AdmitResult int

const (
	// AdmitAdded means a fresh session was created.
	AdmitAdded AdmitResult = iota

	// AdmitExisting means the source address already has a session; the
	// CONNECT is a duplicate.
	AdmitExisting

	// AdmitFull means the server is at its concurrent client limit.
	AdmitFull

	// AdmitLimited means the admission rate limiter rejected the attempt.
	AdmitLimited
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return string(b)
}

// Registry owns all client sessions and enforces the concurrent client
// limit. Slot indices are stable for a session's lifetime and are what the
// rest of the server passes around.
//
// The registry lock guards the slot table and the address and token
// indexes. It is never held while a session or game lock is taken; lookups
// copy the slot pointer, release the registry, then lock the session and
// re-verify it still occupies the slot.
type Registry struct {
	mu       sync.Mutex
	slots    []*Session
	byAddr   map[string]int
	byToken  map[string]int
	count    int
	tokenLen int
	limiter  *rate.Limiter
	metrics  metrics.ServerMetrics
}

// NewRegistry creates a registry with the given capacity.
//
// tokenLen is the length of generated reconnect codes. connectRate limits
// CONNECT admissions per second; zero disables the limiter. m may be nil.
func NewRegistry(capacity, tokenLen int, connectRate float64, connectBurst int, m metrics.ServerMetrics) *Registry {
	r := &Registry{
		slots:    make([]*Session, capacity),
		byAddr:   make(map[string]int, capacity),
		byToken:  make(map[string]int, capacity),
		tokenLen: tokenLen,
		metrics:  m,
	}
	if connectRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(connectRate), connectBurst)
	}
	return r
}

// Admit handles a CONNECT from addr. On success it creates a session with
// a fresh reconnect token and returns its slot index.
func (r *Registry) Admit(addr *net.UDPAddr, now time.Time) (AdmitResult, int) {
	key := addr.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byAddr[key]; ok {
		return AdmitExisting, idx
	}

	if r.limiter != nil && !r.limiter.Allow() {
		return AdmitLimited, 0
	}

	slot := -1
	for i, s := range r.slots {
		if s == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		return AdmitFull, 0
	}

	token := randCode(r.tokenLen)
	for attempt := 0; attempt < 100; attempt++ {
		if _, taken := r.byToken[token]; !taken {
			break
		}
		token = randCode(r.tokenLen)
	}

	s := &Session{
		Index:     slot,
		Addr:      addr,
		AddrKey:   key,
		Active:    true,
		LastSeen:  now,
		RecvSeq:   2,
		SendSeq:   1,
		GameIndex: NoGame,
		Seat:      -1,
		Token:     token,
	}

	r.slots[slot] = s
	r.byAddr[key] = slot
	r.byToken[token] = slot
	r.count++

	if r.metrics != nil {
		r.metrics.RecordSessionAdmitted()
		r.metrics.SetActiveSessions(r.count)
	}

	return AdmitAdded, slot
}

// lookup copies the slot pointer under the registry lock.
func (r *Registry) lookup(index int) *Session {
	if index < 0 || index >= len(r.slots) {
		return nil
	}
	r.mu.Lock()
	s := r.slots[index]
	r.mu.Unlock()
	return s
}

// WithIndex runs fn with the session at index locked. Returns false when
// the slot is empty or the session was removed concurrently.
func (r *Registry) WithIndex(index int, fn func(*Session)) bool {
	s := r.lookup(index)
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return false
	}
	fn(s)
	return true
}

// WithAddr runs fn with the session for the given source address locked.
// Returns false when the address is unknown.
func (r *Registry) WithAddr(addr string, fn func(*Session)) bool {
	r.mu.Lock()
	idx, ok := r.byAddr[addr]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.WithIndex(idx, fn)
}

// IndexByAddr returns the slot index for a source address.
func (r *Registry) IndexByAddr(addr string) (int, bool) {
	r.mu.Lock()
	idx, ok := r.byAddr[addr]
	r.mu.Unlock()
	return idx, ok
}

// IndexByToken returns the slot index for a reconnect token.
func (r *Registry) IndexByToken(token string) (int, bool) {
	r.mu.Lock()
	idx, ok := r.byToken[token]
	r.mu.Unlock()
	return idx, ok
}

// Rebind points the session at index to a new source address, updating the
// address index. Used by RECONNECT when the client comes back from a
// different address. Returns false when the slot is empty.
func (r *Registry) Rebind(index int, addr *net.UDPAddr) bool {
	if index < 0 || index >= len(r.slots) {
		return false
	}

	r.mu.Lock()
	s := r.slots[index]
	if s == nil {
		r.mu.Unlock()
		return false
	}
	delete(r.byAddr, s.AddrKey)
	r.byAddr[addr.String()] = index
	r.mu.Unlock()

	s.mu.Lock()
	s.Rebind(addr)
	s.mu.Unlock()
	return true
}

// Remove frees the session's slot. cause is recorded in metrics
// ("close", "timeout", "shutdown").
func (r *Registry) Remove(index int, cause string) bool {
	if index < 0 || index >= len(r.slots) {
		return false
	}

	r.mu.Lock()
	s := r.slots[index]
	if s == nil {
		r.mu.Unlock()
		return false
	}
	r.slots[index] = nil
	delete(r.byAddr, s.AddrKey)
	delete(r.byToken, s.Token)
	r.count--
	count := r.count
	r.mu.Unlock()

	s.mu.Lock()
	s.removed = true
	s.Queue.Drain()
	s.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordSessionRemoved(cause)
		r.metrics.SetActiveSessions(count)
	}
	return true
}

// Count returns the number of occupied slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Indices returns a snapshot of the occupied slot indices. Used by the
// sender and watchdog sweeps; a session may be removed between the
// snapshot and its use, which WithIndex tolerates.
func (r *Registry) Indices() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, 0, r.count)
	for i, s := range r.slots {
		if s != nil {
			out = append(out, i)
		}
	}
	return out
}

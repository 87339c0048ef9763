package game

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feelus/cns-server/pkg/config"
	"github.com/feelus/cns-server/pkg/session"
)

// testEnv wires a session registry and a game registry with protocol
// defaults and a number of admitted clients.
type testEnv struct {
	sessions *session.Registry
	games    *Registry
	clients  []int
	now      time.Time
}

func newTestEnv(t *testing.T, clients int) *testEnv {
	t.Helper()

	sessions := session.NewRegistry(8, 4, 0, 0, nil)
	games := NewRegistry(8, sessions, config.GetDefaultConfig().Game, nil)

	env := &testEnv{
		sessions: sessions,
		games:    games,
		now:      time.Now(),
	}
	for i := 0; i < clients; i++ {
		res, idx := sessions.Admit(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5000 + i}, env.now)
		require.Equal(t, session.AdmitAdded, res)
		env.clients = append(env.clients, idx)
	}
	return env
}

// drain pops and returns all payloads queued for a client.
func (e *testEnv) drain(idx int) []string {
	var out []string
	e.sessions.WithIndex(idx, func(s *session.Session) {
		for {
			o := s.Queue.Pop()
			if o == nil {
				break
			}
			out = append(out, o.Payload)
		}
	})
	return out
}

// createGame creates a game for client 0 and returns its join code.
func (e *testEnv) createGame(t *testing.T) string {
	t.Helper()

	e.games.Create(e.clients[0], e.now)
	msgs := e.drain(e.clients[0])
	require.Len(t, msgs, 1)
	parts := strings.Split(msgs[0], ";")
	require.Equal(t, "GAME_CREATED", parts[0])
	return parts[1]
}

// gameIdx returns the game index client 0 sits in.
func (e *testEnv) gameIdx(t *testing.T) int {
	t.Helper()

	idx := session.NoGame
	e.sessions.WithIndex(e.clients[0], func(s *session.Session) { idx = s.GameIndex })
	require.NotEqual(t, session.NoGame, idx)
	return idx
}

// mutate runs fn on the game with its lock held.
func (e *testEnv) mutate(t *testing.T, idx int, fn func(*Game)) {
	t.Helper()
	require.True(t, e.games.withGame(idx, fn))
}

// ============================================================================
// Create and Join Tests
// ============================================================================

func TestCreateGame(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 1)
	env.games.Create(env.clients[0], env.now)

	msgs := env.drain(env.clients[0])
	require.Len(t, msgs, 1)
	parts := strings.Split(msgs[0], ";")
	require.Equal(t, "GAME_CREATED", parts[0])
	assert.Len(t, parts[1], 5)
	assert.Equal(t, "35999", parts[2])

	assert.Equal(t, 1, env.games.Count())
	env.sessions.WithIndex(env.clients[0], func(s *session.Session) {
		assert.Equal(t, 0, s.Seat)
		assert.NotEqual(t, session.NoGame, s.GameIndex)
	})
}

func TestJoinGame(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)

	env.games.Join(env.clients[1], code, env.now)

	joiner := env.drain(env.clients[1])
	require.Len(t, joiner, 1)

	pockets := make([]string, FigureCount)
	for f := range pockets {
		pockets[f] = fmt.Sprintf("%d", PocketSeat(f))
	}
	want := fmt.Sprintf("GAME_STATE;%s;0;1;1;0;0;%s;100;1;35999;-1", code, strings.Join(pockets, ";"))
	assert.Equal(t, want, joiner[0])

	creator := env.drain(env.clients[0])
	require.Len(t, creator, 1)
	assert.Equal(t, "CLIENT_JOINED_GAME;1", creator[0])
}

func TestJoinFailures(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 6)
	code := env.createGame(t)

	env.games.Join(env.clients[1], "XXXXX", env.now)
	assert.Equal(t, []string{"GAME_NONEXISTENT"}, env.drain(env.clients[1]))

	// Already in a game.
	env.games.Join(env.clients[0], code, env.now)
	assert.Equal(t, []string{"GAME_NONEXISTENT"}, env.drain(env.clients[0]))

	// Fill the remaining three slots.
	for _, c := range env.clients[1:4] {
		env.games.Join(c, code, env.now)
	}
	env.games.Join(env.clients[4], code, env.now)
	assert.Equal(t, []string{"GAME_FULL"}, env.drain(env.clients[4]))

	// Running game rejects joins.
	env.drain(env.clients[1])
	env.games.Leave(env.clients[3], env.now)
	env.games.Start(env.clients[0], env.now)
	env.games.Join(env.clients[5], code, env.now)
	assert.Equal(t, []string{"GAME_RUNNING"}, env.drain(env.clients[5]))
}

// ============================================================================
// Start and Roll Tests
// ============================================================================

func TestStartGame(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.Start(env.clients[0], env.now)

	for _, c := range env.clients {
		msgs := env.drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "GAME_STARTED;0;45", msgs[0])
	}

	env.mutate(t, env.gameIdx(t), func(g *Game) {
		assert.True(t, g.Running)
		assert.Equal(t, 0, g.Playing)
		assert.Equal(t, NotRolled, g.Rolled)
		assert.Equal(t, 0, g.RolledTimes, "all figures pocketed grants three attempts")
	})
}

func TestStartByNonCreatorRecovers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.drain(env.clients[1])

	env.games.Start(env.clients[1], env.now)

	msgs := env.drain(env.clients[1])
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "GAME_STATE;"))
}

func TestRollSixAllowsDeploy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.SetForceRoll(6)
	env.games.Roll(env.clients[0], env.now)

	msgs := env.drain(env.clients[0])
	require.Len(t, msgs, 1)
	assert.Equal(t, "ROLLED_DIE;6", msgs[0])

	idx := env.gameIdx(t)
	env.mutate(t, idx, func(g *Game) {
		assert.Equal(t, 6, g.Rolled, "legal move pending, roll retained")
		assert.Equal(t, 0, g.Playing)
	})

	// Rolling again before moving is a protocol violation.
	env.games.Roll(env.clients[0], env.now)
	msgs = env.drain(env.clients[0])
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "GAME_STATE;"))
}

func TestThreeFailedAttemptsPassTurn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.SetForceRoll(3)
	env.games.Roll(env.clients[0], env.now)
	env.games.Roll(env.clients[0], env.now)

	msgs := env.drain(env.clients[0])
	assert.Equal(t, []string{"ROLLED_DIE;3", "ROLLED_DIE;3"}, msgs)

	env.games.Roll(env.clients[0], env.now)
	msgs = env.drain(env.clients[0])
	assert.Equal(t, []string{"ROLLED_DIE;3", "PLAYING_INDEX;1;45"}, msgs)

	env.mutate(t, env.gameIdx(t), func(g *Game) {
		assert.Equal(t, 1, g.Playing)
		assert.Equal(t, NotRolled, g.Rolled)
	})
}

// ============================================================================
// Move Tests
// ============================================================================

func TestDeployAndAdvanceTurn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	env.games.SetForceRoll(6)
	env.games.Roll(env.clients[0], env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.Move(env.clients[0], 0, env.now)

	msgs := env.drain(env.clients[1])
	assert.Equal(t, []string{"FIGURE_MOVED;0;0", "PLAYING_INDEX;1;45"}, msgs)

	env.mutate(t, env.gameIdx(t), func(g *Game) {
		assert.Equal(t, 0, g.Figures[0])
		assert.Equal(t, 0, g.Fields[0])
		assert.Equal(t, -1, g.Fields[PocketSeat(0)])
		assert.Equal(t, 1, g.Playing)
	})
}

func TestCaptureSendsVictimHomeFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	idx := env.gameIdx(t)

	env.mutate(t, idx, func(g *Game) {
		place(&g.Figures, &g.Fields, 0, 9)
		place(&g.Figures, &g.Fields, 4, 10)
		g.setPlaying(0, env.now)
	})

	env.games.SetForceRoll(1)
	env.games.Roll(env.clients[0], env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.Move(env.clients[0], 0, env.now)

	msgs := env.drain(env.clients[1])
	assert.Equal(t, []string{"FIGURE_MOVED;4;60", "FIGURE_MOVED;0;10", "PLAYING_INDEX;1;45"}, msgs)

	env.mutate(t, idx, func(g *Game) {
		assert.Equal(t, 0, g.Fields[10])
		assert.Equal(t, -1, g.Fields[9])
		assert.Equal(t, 60, g.Figures[4])
		assert.Equal(t, 4, g.Fields[60])
	})
}

func TestMoveByWrongPlayerRecovers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	env.drain(env.clients[1])

	env.games.Move(env.clients[1], 4, env.now)

	msgs := env.drain(env.clients[1])
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "GAME_STATE;"))
}

func TestGameFinish(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	idx := env.gameIdx(t)

	// Three of player 0's figures parked in home, the fourth one step
	// from the column.
	env.mutate(t, idx, func(g *Game) {
		place(&g.Figures, &g.Fields, 0, HomeBase(0))
		place(&g.Figures, &g.Fields, 1, HomeBase(0)+1)
		place(&g.Figures, &g.Fields, 2, HomeBase(0)+2)
		place(&g.Figures, &g.Fields, 3, 39)
		g.setPlaying(0, env.now)
	})

	env.games.SetForceRoll(4)
	env.games.Roll(env.clients[0], env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.Move(env.clients[0], 3, env.now)

	msgs := env.drain(env.clients[1])
	assert.Equal(t, []string{"FIGURE_MOVED;3;43", "GAME_FINISHED;0;1;-1;-1"}, msgs)

	env.mutate(t, idx, func(g *Game) {
		assert.False(t, g.Running)
		assert.Equal(t, PlayingNone, g.Playing)
	})

	// Post-finish rolls are protocol violations answered with a snapshot.
	env.games.Roll(env.clients[0], env.now)
	msgs = env.drain(env.clients[0])
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "GAME_STATE;"))
}

// ============================================================================
// Leave, Timeout and Sweep Tests
// ============================================================================

func TestLeaveBroadcastsAndResetsFigures(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	idx := env.gameIdx(t)

	env.mutate(t, idx, func(g *Game) {
		place(&g.Figures, &g.Fields, 4, 15)
	})
	env.drain(env.clients[0])

	left := env.games.Leave(env.clients[1], env.now)
	assert.True(t, left)

	msgs := env.drain(env.clients[0])
	require.Len(t, msgs, 1)
	assert.Equal(t, "CLIENT_LEFT_GAME;1;0;44", msgs[0])

	env.mutate(t, idx, func(g *Game) {
		assert.Equal(t, NoSession, g.Members[1])
		assert.Equal(t, PocketSeat(4), g.Figures[4])
		assert.Equal(t, -1, g.Fields[15])
	})

	env.sessions.WithIndex(env.clients[1], func(s *session.Session) {
		assert.Equal(t, session.NoGame, s.GameIndex)
	})
}

func TestLeaveSoleOccupantTearsDown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 1)
	env.createGame(t)
	require.Equal(t, 1, env.games.Count())

	assert.True(t, env.games.Leave(env.clients[0], env.now))
	assert.Equal(t, 0, env.games.Count())
	assert.False(t, env.games.Leave(env.clients[0], env.now))
}

func TestMarkInactiveAdvancesTurn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	env.drain(env.clients[1])

	env.games.MarkInactive(env.clients[0], env.now)

	msgs := env.drain(env.clients[1])
	require.Len(t, msgs, 1)
	assert.Equal(t, "CLIENT_TIMEOUT;0;1;45", msgs[0])

	env.mutate(t, env.gameIdx(t), func(g *Game) {
		assert.True(t, g.Inactive[0])
		assert.Equal(t, 1, g.Playing)
	})
}

func TestReconnectedPushesStateAndNotifies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.MarkInactive(env.clients[1], env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.Reconnected(env.clients[1], env.now)

	back := env.drain(env.clients[1])
	require.Len(t, back, 1)
	assert.True(t, strings.HasPrefix(back[0], "GAME_STATE;"))

	other := env.drain(env.clients[0])
	require.Len(t, other, 1)
	assert.Equal(t, "CLIENT_RECONNECT;1", other[0])

	env.mutate(t, env.gameIdx(t), func(g *Game) {
		assert.False(t, g.Inactive[1])
	})
}

func TestSweepForcesStalledTurn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.games.Start(env.clients[0], env.now)
	idx := env.gameIdx(t)
	env.drain(env.clients[1])

	env.mutate(t, idx, func(g *Game) {
		g.Stamp = env.now.Add(-200 * time.Second)
	})

	env.games.Sweep(env.now)

	msgs := env.drain(env.clients[1])
	require.Len(t, msgs, 1)
	assert.Equal(t, "PLAYING_INDEX;1;45", msgs[0])
}

func TestSweepExpiresLobby(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	idx := env.gameIdx(t)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.mutate(t, idx, func(g *Game) {
		g.Created = env.now.Add(-36001 * time.Second)
	})

	env.games.Sweep(env.now)

	assert.Equal(t, []string{"GAME_LEFT"}, env.drain(env.clients[0]))
	assert.Equal(t, []string{"GAME_LEFT"}, env.drain(env.clients[1]))
	assert.Equal(t, 0, env.games.Count())

	env.sessions.WithIndex(env.clients[0], func(s *session.Session) {
		assert.Equal(t, session.NoGame, s.GameIndex)
	})
}

// ============================================================================
// Chat Tests
// ============================================================================

func TestChatRelayedToAllMembers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 2)
	code := env.createGame(t)
	env.games.Join(env.clients[1], code, env.now)
	env.drain(env.clients[0])
	env.drain(env.clients[1])

	env.games.Chat(env.clients[1], "hello;world")

	assert.Equal(t, []string{"MESSAGE;1;hello;world"}, env.drain(env.clients[0]))
	assert.Equal(t, []string{"MESSAGE;1;hello;world"}, env.drain(env.clients[1]))
}

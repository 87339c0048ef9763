package game

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/feelus/cns-server/internal/logger"
	"github.com/feelus/cns-server/internal/protocol/wire"
	"github.com/feelus/cns-server/pkg/config"
	"github.com/feelus/cns-server/pkg/metrics"
	"github.com/feelus/cns-server/pkg/session"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Registry owns all games and runs the engine operations the dispatcher
// and watchdog invoke.
//
// Lock order: the registry lock is only ever taken alone or while already
// holding a game lock (teardown); game locks are taken with the registry
// lock released; session locks are taken while holding a game lock, one
// member at a time, never the reverse.
type Registry struct {
	mu     sync.Mutex
	slots  []*Game
	byCode map[string]int
	count  int

	sessions *session.Registry
	cfg      config.GameConfig
	metrics  metrics.GameMetrics

	// forceRoll pins the die for debugging; 0 disables.
	forceRoll atomic.Int32
}

// NewRegistry creates a game registry backed by the given session
// registry. capacity bounds concurrent games. m may be nil.
func NewRegistry(capacity int, sessions *session.Registry, cfg config.GameConfig, m metrics.GameMetrics) *Registry {
	return &Registry{
		slots:    make([]*Game, capacity),
		byCode:   make(map[string]int, capacity),
		sessions: sessions,
		cfg:      cfg,
		metrics:  m,
	}
}

// SetForceRoll pins the die to n for every subsequent roll. Values outside
// 1..6 disable the override.
func (r *Registry) SetForceRoll(n int) {
	if n < 1 || n > 6 {
		n = 0
	}
	r.forceRoll.Store(int32(n))
}

// Count returns the number of live games.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// turnClock is the per-turn clock in seconds as transmitted to clients.
func (r *Registry) turnClock() int {
	return int(r.cfg.PlayTime.Seconds())
}

func randGameCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// withGame runs fn with the game at index locked. Returns false when the
// slot is empty or the game was torn down concurrently.
func (r *Registry) withGame(index int, fn func(*Game)) bool {
	if index < 0 || index >= len(r.slots) {
		return false
	}
	r.mu.Lock()
	g := r.slots[index]
	r.mu.Unlock()
	if g == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	fn(g)
	return true
}

// teardown unpublishes g from the registry. Caller holds the game lock;
// taking the registry lock here is safe because lookups never hold the
// registry lock while waiting on a game lock.
func (r *Registry) teardown(g *Game) {
	r.mu.Lock()
	if r.slots[g.Index] == g {
		r.slots[g.Index] = nil
		delete(r.byCode, g.Code)
		r.count--
	}
	r.mu.Unlock()
	g.closed = true
}

// broadcast enqueues payload to every seated member except skipSlot
// (pass -1 to address everyone). Caller holds the game lock.
func (r *Registry) broadcast(g *Game, payload string, skipSlot int) {
	for slot, m := range g.Members {
		if m == NoSession || slot == skipSlot {
			continue
		}
		r.sessions.WithIndex(m, func(s *session.Session) {
			s.Enqueue(payload)
		})
	}
}

// sendTo enqueues payload to a single session index.
func (r *Registry) sendTo(sessionIdx int, payload string) {
	r.sessions.WithIndex(sessionIdx, func(s *session.Session) {
		s.Enqueue(payload)
	})
}

// sessionSeat reads a session's game slot and seat without holding any
// game lock.
func (r *Registry) sessionSeat(sessionIdx int) (gameIdx, seat int, ok bool) {
	gameIdx, seat = session.NoGame, -1
	ok = r.sessions.WithIndex(sessionIdx, func(s *session.Session) {
		gameIdx = s.GameIndex
		seat = s.Seat
	})
	return gameIdx, seat, ok
}

// clearSessionSeat detaches a session from its game.
func (r *Registry) clearSessionSeat(sessionIdx int) {
	r.sessions.WithIndex(sessionIdx, func(s *session.Session) {
		s.GameIndex = session.NoGame
		s.Seat = -1
	})
}

// ============================================================================
// Engine operations
// ============================================================================

// Create handles CREATE_GAME: allocates a game with the creator in slot 0
// and replies GAME_CREATED with the join code and the lobby clock.
func (r *Registry) Create(clientIdx int, now time.Time) {
	gameIdx, _, ok := r.sessionSeat(clientIdx)
	if !ok {
		return
	}
	if gameIdx != session.NoGame {
		// Already seated; recover the client instead of creating.
		r.RecoverState(clientIdx, now)
		return
	}

	r.mu.Lock()
	slot := -1
	for i, g := range r.slots {
		if g == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		r.mu.Unlock()
		logger.Warn("game table full, CREATE_GAME dropped", "session", clientIdx)
		return
	}

	code := randGameCode(r.cfg.CodeLen)
	for attempt := 0; attempt < 100; attempt++ {
		if _, taken := r.byCode[code]; !taken {
			break
		}
		code = randGameCode(r.cfg.CodeLen)
	}

	g := &Game{
		Index:   slot,
		Code:    code,
		Playing: PlayingNone,
		Rolled:  NotRolled,
		Created: now,
		Stamp:   now,
	}
	for i := range g.Members {
		g.Members[i] = NoSession
	}
	for i := range g.Finished {
		g.Finished[i] = -1
	}
	g.resetBoard()
	g.Members[0] = clientIdx

	r.slots[slot] = g
	r.byCode[code] = slot
	r.count++
	r.mu.Unlock()

	r.sessions.WithIndex(clientIdx, func(s *session.Session) {
		s.GameIndex = slot
		s.Seat = 0
		s.Enqueue(fmt.Sprintf("%s;%s;%d", wire.MsgGameCreated, code, int(r.cfg.LobbyTime.Seconds())-1))
	})

	if r.metrics != nil {
		r.metrics.RecordGameCreated()
	}
	logger.Info("game created", "game_code", code, "session", clientIdx)
}

// Join handles JOIN_GAME: seats the session in the first free slot, pushes
// the state snapshot to the joiner and announces the join to the others.
func (r *Registry) Join(clientIdx int, code string, now time.Time) {
	gameIdx, _, ok := r.sessionSeat(clientIdx)
	if !ok {
		return
	}
	if gameIdx != session.NoGame {
		r.sendTo(clientIdx, wire.MsgGameNonexistent)
		return
	}

	r.mu.Lock()
	idx, found := r.byCode[code]
	r.mu.Unlock()
	if !found {
		r.sendTo(clientIdx, wire.MsgGameNonexistent)
		return
	}

	joined := r.withGame(idx, func(g *Game) {
		if g.Running {
			r.sendTo(clientIdx, wire.MsgGameRunning)
			return
		}
		slot := g.freeSlot()
		if slot == -1 {
			r.sendTo(clientIdx, wire.MsgGameFull)
			return
		}

		g.Members[slot] = clientIdx
		g.Inactive[slot] = false

		r.sessions.WithIndex(clientIdx, func(s *session.Session) {
			s.GameIndex = idx
			s.Seat = slot
			s.Enqueue(g.snapshot(slot, now, r.cfg.LobbyTime, r.cfg.PlayTime))
		})
		r.broadcast(g, fmt.Sprintf("%s;%d", wire.MsgClientJoined, slot), slot)

		logger.Info("client joined game", "game_code", g.Code, "session", clientIdx, "slot", slot)
	})
	if !joined {
		r.sendTo(clientIdx, wire.MsgGameNonexistent)
	}
}

// Leave handles LEAVE_GAME and the leave half of CLOSE and timeout
// removal. Returns true when the session was seated in a game.
func (r *Registry) Leave(clientIdx int, now time.Time) bool {
	gameIdx, _, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return false
	}

	left := false
	r.withGame(gameIdx, func(g *Game) {
		seat := g.seatOf(clientIdx)
		if seat == -1 {
			return
		}
		left = true

		if g.memberCount() == 1 {
			r.teardown(g)
			if r.metrics != nil {
				r.metrics.RecordGameFinished("abandoned")
			}
			logger.Info("game torn down, last player left", "game_code", g.Code)
			return
		}

		g.clearSeat(seat, now)

		next := g.Playing
		if g.Running && g.Playing == seat {
			next = g.advanceTurn(now)
		}
		r.broadcast(g, fmt.Sprintf("%s;%d;%d;%d", wire.MsgClientLeft, seat, next, r.turnClock()-1), -1)

		logger.Info("client left game", "game_code", g.Code, "session", clientIdx, "slot", seat)
	})

	r.clearSessionSeat(clientIdx)
	return left
}

// Start handles START_GAME from the game's creator: resets the board,
// hands the turn to the first occupied slot and announces the start.
func (r *Registry) Start(clientIdx int, now time.Time) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		if g.Running || seat != 0 || g.memberCount() == 0 {
			r.recoverLocked(g, clientIdx, seat, now)
			return
		}

		g.resetBoard()
		for i := range g.Finished {
			g.Finished[i] = -1
		}
		g.Running = true

		first := 0
		for slot, m := range g.Members {
			if m != NoSession && !g.Inactive[slot] {
				first = slot
				break
			}
		}
		g.setPlaying(first, now)

		r.broadcast(g, fmt.Sprintf("%s;%d;%d", wire.MsgGameStarted, first, r.turnClock()), -1)

		if r.metrics != nil {
			r.metrics.RecordGameStarted()
		}
		logger.Info("game started", "game_code", g.Code, "first_slot", first)
	})
}

// Roll handles DIE_ROLL for the player holding the turn.
func (r *Registry) Roll(clientIdx int, now time.Time) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		if !g.Running || g.Playing != seat || g.Rolled != NotRolled {
			r.recoverLocked(g, clientIdx, seat, now)
			return
		}

		value := int(r.forceRoll.Load())
		if value < 1 || value > 6 {
			value = rand.Intn(6) + 1
		}

		g.RolledTimes++
		g.Rolled = value
		r.broadcast(g, fmt.Sprintf("%s;%d", wire.MsgRolledDie, value), -1)

		if r.metrics != nil {
			r.metrics.RecordDieRoll(value)
		}

		if g.hasLegalMove(seat, value) {
			g.Stamp = now
			return
		}

		// No legal move. A player with every figure pocketed gets up to
		// three attempts at a 6; everyone else forfeits the turn.
		if !g.hasTrackFigures(seat) && value != 6 && g.RolledTimes < 3 {
			g.Rolled = NotRolled
			g.Stamp = now
			return
		}

		next := g.advanceTurn(now)
		r.broadcast(g, fmt.Sprintf("%s;%d;%d", wire.MsgPlayingIndex, next, r.turnClock()), -1)
	})
}

// Move handles FIGURE_MOVE for the player holding the turn.
func (r *Registry) Move(clientIdx, figure int, now time.Time) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		if !g.Running || g.Playing != seat || g.Rolled == NotRolled ||
			figure < 0 || figure >= FigureCount || PlayerOf(figure) != seat {
			r.recoverLocked(g, clientIdx, seat, now)
			return
		}

		dest, legal := CanFigureMove(&g.Figures, &g.Fields, figure, g.Rolled)
		if !legal {
			r.recoverLocked(g, clientIdx, seat, now)
			return
		}

		moveKind := "advance"
		if InPocket(g.Figures[figure]) {
			moveKind = "deploy"
		} else if InHome(dest) {
			moveKind = "home"
		}

		// Capture first, so clients see the victim vacate the field
		// before the mover arrives.
		if victim := g.Fields[dest]; victim != -1 {
			pocket := PocketSeat(victim)
			g.Fields[dest] = -1
			g.Figures[victim] = pocket
			g.Fields[pocket] = victim
			r.broadcast(g, fmt.Sprintf("%s;%d;%d", wire.MsgFigureMoved, victim, pocket), -1)
			moveKind = "capture"
		}

		g.Fields[g.Figures[figure]] = -1
		g.Figures[figure] = dest
		g.Fields[dest] = figure
		r.broadcast(g, fmt.Sprintf("%s;%d;%d", wire.MsgFigureMoved, figure, dest), -1)

		if r.metrics != nil {
			r.metrics.RecordFigureMove(moveKind)
		}

		if g.playerFinished(seat) {
			g.recordFinish(seat)
		}

		// The game ends when a single unfinished player remains, except
		// in single-player games, which run until abandoned.
		if unfinished := g.unfinishedPlayers(); len(unfinished) == 1 && g.memberCount() > 1 {
			g.recordFinish(unfinished[0])
			r.finishLocked(g, now)
			return
		}

		rolled := g.Rolled
		if rolled != 6 || g.hasTrackFigures(seat) || g.RolledTimes >= 3 {
			next := g.advanceTurn(now)
			r.broadcast(g, fmt.Sprintf("%s;%d;%d", wire.MsgPlayingIndex, next, r.turnClock()), -1)
		} else {
			g.Rolled = NotRolled
			g.Stamp = now
		}
	})
}

// finishLocked ends a running game: announces the finishing order and
// drops the game back to a non-running state. Caller holds the game lock.
func (r *Registry) finishLocked(g *Game, now time.Time) {
	payload := wire.MsgGameFinished
	for slot := 0; slot < MaxPlayers; slot++ {
		payload += fmt.Sprintf(";%d", g.finishPos(slot))
	}
	r.broadcast(g, payload, -1)

	g.Running = false
	g.Playing = PlayingNone
	g.Rolled = NotRolled
	g.Stamp = now

	if r.metrics != nil {
		r.metrics.RecordGameFinished("finished")
	}
	logger.Info("game finished", "game_code", g.Code)
}

// Chat handles MESSAGE: relays a chat line to every member, sender
// included, tagged with the sender's slot.
func (r *Registry) Chat(clientIdx int, text string) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		r.broadcast(g, fmt.Sprintf("%s;%d;%s", wire.MsgMessage, seat, text), -1)
	})
}

// Reconnected pushes the full state to a freshly rebound session and
// announces the comeback to the other players.
func (r *Registry) Reconnected(clientIdx int, now time.Time) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		g.Inactive[seat] = false
		r.sendTo(clientIdx, g.snapshot(seat, now, r.cfg.LobbyTime, r.cfg.PlayTime))
		r.broadcast(g, fmt.Sprintf("%s;%d", wire.MsgClientReconnect, seat), seat)
	})
}

// RecoverState re-sends the state snapshot to a client that violated the
// protocol, so it can resynchronize.
func (r *Registry) RecoverState(clientIdx int, now time.Time) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		r.recoverLocked(g, clientIdx, seat, now)
	})
}

func (r *Registry) recoverLocked(g *Game, clientIdx, seat int, now time.Time) {
	r.sendTo(clientIdx, g.snapshot(seat, now, r.cfg.LobbyTime, r.cfg.PlayTime))
}

// MarkInactive flags a silent player in its game, announces the timeout
// and passes the turn if the player held it.
func (r *Registry) MarkInactive(clientIdx int, now time.Time) {
	gameIdx, seat, ok := r.sessionSeat(clientIdx)
	if !ok || gameIdx == session.NoGame {
		return
	}

	r.withGame(gameIdx, func(g *Game) {
		if g.Inactive[seat] {
			return
		}
		g.Inactive[seat] = true

		next := g.Playing
		if g.Running && g.Playing == seat {
			next = g.advanceTurn(now)
			if r.metrics != nil {
				r.metrics.RecordTurnTimeout()
			}
		}
		r.broadcast(g, fmt.Sprintf("%s;%d;%d;%d", wire.MsgClientTimeout, seat, next, r.turnClock()), -1)

		logger.Info("client marked inactive", "game_code", g.Code, "slot", seat)
	})
}

// Sweep runs the per-game watchdog clocks: stalled running games have
// their turn forced onward, expired lobbies are torn down with a
// notification to their members.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	indices := make([]int, 0, r.count)
	for i, g := range r.slots {
		if g != nil {
			indices = append(indices, i)
		}
	}
	r.mu.Unlock()

	lobby, running := 0, 0

	for _, idx := range indices {
		r.withGame(idx, func(g *Game) {
			switch {
			case g.Running:
				running++
				if now.Sub(g.Stamp) > r.cfg.PlayStateTime {
					next := g.advanceTurn(now)
					r.broadcast(g, fmt.Sprintf("%s;%d;%d", wire.MsgPlayingIndex, next, r.turnClock()), -1)
					if r.metrics != nil {
						r.metrics.RecordTurnTimeout()
					}
					logger.Warn("stalled game, turn forced", "game_code", g.Code, "next_slot", next)
				}

			case now.Sub(g.Created) > r.cfg.LobbyTime:
				r.broadcast(g, wire.MsgGameLeft, -1)
				for _, m := range g.Members {
					if m != NoSession {
						r.clearSessionSeat(m)
					}
				}
				r.teardown(g)
				if r.metrics != nil {
					r.metrics.RecordGameFinished("expired")
				}
				logger.Info("lobby expired", "game_code", g.Code)

			default:
				lobby++
			}
		})
	}

	if r.metrics != nil {
		r.metrics.SetActiveGames("lobby", lobby)
		r.metrics.SetActiveGames("running", running)
	}
}

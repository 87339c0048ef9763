package game

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NoSession marks an empty player slot.
const NoSession = -1

// Game is one lobby or running game.
//
// All fields are guarded by mu. The registry's withGame combinator
// acquires the lock; engine methods below assume it is held. Sessions of
// members may be locked while holding the game lock, never the reverse.
type Game struct {
	mu sync.Mutex

	// Index is the game's slot in the registry.
	Index int

	// Code is the join code clients quote in JOIN_GAME.
	Code string

	// Running is true between START_GAME and teardown.
	Running bool

	// Members holds the session index seated at each player slot, or
	// NoSession. Slot 0 is the creator.
	Members [MaxPlayers]int

	// Inactive marks slots whose session has gone silent. Such slots are
	// skipped by turn advancement and reported as 2 in GAME_STATE.
	Inactive [MaxPlayers]bool

	// Figures and Fields are the two board views, kept in lockstep:
	// Figures[i] is the seat of figure i, Fields[x] the figure at seat x
	// or -1.
	Figures [FigureCount]int
	Fields  [SeatCount]int

	// Playing is the slot holding the turn, or PlayingNone when the game
	// is not running.
	Playing int

	// Rolled is the current player's die value, or NotRolled.
	Rolled int

	// RolledTimes counts the current player's roll attempts this turn.
	RolledTimes int

	// Finished lists player slots in finishing order; unfilled entries
	// are -1.
	Finished [MaxPlayers]int

	// Created starts the lobby clock; Stamp restarts the turn and stall
	// clocks on every state change.
	Created time.Time
	Stamp   time.Time

	closed bool
}

// resetBoard puts every figure in its pocket seat and rebuilds Fields.
func (g *Game) resetBoard() {
	for x := range g.Fields {
		g.Fields[x] = -1
	}
	for f := range g.Figures {
		seat := PocketSeat(f)
		g.Figures[f] = seat
		g.Fields[seat] = f
	}
}

// seatOf returns the slot a session index occupies, or -1.
func (g *Game) seatOf(sessionIdx int) int {
	for slot, m := range g.Members {
		if m == sessionIdx {
			return slot
		}
	}
	return -1
}

// memberCount returns the number of occupied slots.
func (g *Game) memberCount() int {
	n := 0
	for _, m := range g.Members {
		if m != NoSession {
			n++
		}
	}
	return n
}

// freeSlot returns the first empty slot, or -1 when the game is full.
func (g *Game) freeSlot() int {
	for slot, m := range g.Members {
		if m == NoSession {
			return slot
		}
	}
	return -1
}

// clearSeat empties a player slot and returns the player's four figures
// to their pocket seats, keeping Figures and Fields in lockstep.
func (g *Game) clearSeat(slot int, now time.Time) {
	g.Members[slot] = NoSession
	g.Inactive[slot] = false

	for f := slot * FiguresPerPlayer; f < (slot+1)*FiguresPerPlayer; f++ {
		old := g.Figures[f]
		if g.Fields[old] == f {
			g.Fields[old] = -1
		}
		seat := PocketSeat(f)
		g.Figures[f] = seat
		g.Fields[seat] = f
	}

	g.Stamp = now
}

// hasTrackFigures reports whether player p has a figure on the shared
// track. Players with track figures get a single roll attempt per turn.
func (g *Game) hasTrackFigures(p int) bool {
	for f := p * FiguresPerPlayer; f < (p+1)*FiguresPerPlayer; f++ {
		if OnTrack(g.Figures[f]) {
			return true
		}
	}
	return false
}

// playerFinished reports whether all four of p's figures sit in p's home
// column.
func (g *Game) playerFinished(p int) bool {
	for f := p * FiguresPerPlayer; f < (p+1)*FiguresPerPlayer; f++ {
		if !InHome(g.Figures[f]) {
			return false
		}
	}
	return true
}

// finishPos returns p's position in the finishing order, or -1.
func (g *Game) finishPos(p int) int {
	for i, slot := range g.Finished {
		if slot == p {
			return i
		}
	}
	return -1
}

// recordFinish appends p to the finishing order if not already present.
func (g *Game) recordFinish(p int) {
	if g.finishPos(p) != -1 {
		return
	}
	for i, slot := range g.Finished {
		if slot == -1 {
			g.Finished[i] = p
			return
		}
	}
}

// hasLegalMove reports whether player p can move any figure by roll.
func (g *Game) hasLegalMove(p, roll int) bool {
	for f := p * FiguresPerPlayer; f < (p+1)*FiguresPerPlayer; f++ {
		if _, ok := CanFigureMove(&g.Figures, &g.Fields, f, roll); ok {
			return true
		}
	}
	return false
}

// advanceTurn scans the three slots after the current one and hands the
// turn to the first that is occupied, unfinished and active. The turn
// stays put when no candidate exists. Returns the new turn slot.
func (g *Game) advanceTurn(now time.Time) int {
	for i := 1; i < MaxPlayers; i++ {
		slot := (g.Playing + i) % MaxPlayers
		if g.Members[slot] == NoSession || g.Inactive[slot] || g.playerFinished(slot) {
			continue
		}
		g.setPlaying(slot, now)
		return slot
	}
	// Sole eligible player keeps the turn; restart its clock and attempts.
	if g.Playing >= 0 && g.Playing < MaxPlayers {
		g.setPlaying(g.Playing, now)
	}
	return g.Playing
}

// setPlaying hands the turn to slot and primes its roll attempts: one
// attempt when the player has track figures, otherwise three attempts to
// roll a 6.
func (g *Game) setPlaying(slot int, now time.Time) {
	g.Playing = slot
	g.Rolled = NotRolled
	if g.hasTrackFigures(slot) {
		g.RolledTimes = 3
	} else {
		g.RolledTimes = 0
	}
	g.Stamp = now
}

// unfinishedPlayers returns the occupied, unfinished slots.
func (g *Game) unfinishedPlayers() []int {
	var out []int
	for slot, m := range g.Members {
		if m != NoSession && !g.playerFinished(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// snapshot renders the GAME_STATE payload for one recipient.
//
// Layout: code, state, four slot flags (0 empty, 1 active, 2 inactive),
// 16 figure seats, current turn slot, the recipient's own slot, seconds
// remaining on the current clock, and the current roll.
func (g *Game) snapshot(recipientSlot int, now time.Time, lobbyTime, playTime time.Duration) string {
	var b strings.Builder

	state := 0
	if g.Running {
		state = 1
	}
	fmt.Fprintf(&b, "GAME_STATE;%s;%d", g.Code, state)

	for slot, m := range g.Members {
		flag := 0
		switch {
		case m == NoSession:
			flag = 0
		case g.Inactive[slot]:
			flag = 2
		default:
			flag = 1
		}
		fmt.Fprintf(&b, ";%d", flag)
	}

	for _, seat := range g.Figures {
		fmt.Fprintf(&b, ";%d", seat)
	}

	var remaining int
	if g.Running {
		remaining = int((playTime - now.Sub(g.Stamp)).Seconds()) - 1
	} else {
		remaining = int((lobbyTime - now.Sub(g.Created)).Seconds()) - 1
	}
	if remaining < 0 {
		remaining = 0
	}

	fmt.Fprintf(&b, ";%d;%d;%d;%d", g.Playing, recipientSlot, remaining, g.Rolled)
	return b.String()
}

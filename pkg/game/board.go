// Package game implements the board engine and the registry of concurrent
// games.
//
// The board is a flat array of 72 seats: a shared circular track of 40
// fields, four home columns of four slots, and four start pockets of four
// slots. Sixteen figures move across it, four per player. The engine keeps
// two views in lockstep: figures[i] is the seat of figure i, and fields[x]
// is the figure occupying seat x or -1.
package game

const (
	// TrackSize is the number of fields on the shared circular track.
	TrackSize = 40

	// SeatCount is the total number of board seats: track, home columns
	// and start pockets.
	SeatCount = 72

	// FigureCount is the total number of figures on the board.
	FigureCount = 16

	// MaxPlayers is the number of seats in a game.
	MaxPlayers = 4

	// FiguresPerPlayer is the number of figures each player owns.
	FiguresPerPlayer = 4

	// PlayingNone is the turn sentinel for a game that is not running.
	// Transmitted verbatim in GAME_STATE.
	PlayingNone = 100

	// NotRolled is the playing_rolled sentinel before the current player
	// has rolled.
	NotRolled = -1

	homeFirst   = TrackSize      // 40
	pocketFirst = TrackSize + 16 // 56
)

// PlayerOf returns the owning player of a figure.
func PlayerOf(figure int) int {
	return figure / FiguresPerPlayer
}

// Entry returns the track field where player p's figures enter from the
// pocket.
func Entry(p int) int {
	return p * 10
}

// HomeBase returns the first seat of player p's home column.
func HomeBase(p int) int {
	return homeFirst + p*FiguresPerPlayer
}

// PocketSeat returns the fixed start-pocket seat of a figure. Each figure
// has its own pocket slot, so captures never collide.
func PocketSeat(figure int) int {
	return pocketFirst + figure
}

// InPocket reports whether a seat is a start-pocket slot.
func InPocket(seat int) bool {
	return seat >= pocketFirst && seat < SeatCount
}

// InHome reports whether a seat is a home-column slot.
func InHome(seat int) bool {
	return seat >= homeFirst && seat < pocketFirst
}

// OnTrack reports whether a seat is on the shared circular track.
func OnTrack(seat int) bool {
	return seat >= 0 && seat < homeFirst
}

// trackSteps returns how many fields figure of player p at track seat x
// has already travelled since its entry field.
func trackSteps(p, x int) int {
	return (x - Entry(p) + TrackSize) % TrackSize
}

// CanFigureMove computes the destination for moving a figure by roll.
//
// Rules:
//   - From the pocket, only a 6 deploys the figure onto its entry field.
//   - On the track, the figure advances roll fields; reaching or passing
//     its home entry wraps it into the home column, and overshooting the
//     four home slots is illegal.
//   - Inside the home column, the figure advances within the column only.
//
// A destination is legal only when empty or held by an opponent figure;
// same-color collisions are illegal. Home-column seats only ever hold the
// owner's figures, so the occupancy check covers them too.
func CanFigureMove(figures *[FigureCount]int, fields *[SeatCount]int, figure, roll int) (int, bool) {
	p := PlayerOf(figure)
	x := figures[figure]

	var dest int
	switch {
	case InPocket(x):
		if roll != 6 {
			return 0, false
		}
		dest = Entry(p)

	case OnTrack(x):
		steps := trackSteps(p, x) + roll
		if steps < TrackSize {
			dest = (x + roll) % TrackSize
		} else {
			homeSlot := steps - TrackSize
			if homeSlot >= FiguresPerPlayer {
				return 0, false
			}
			dest = HomeBase(p) + homeSlot
		}

	case InHome(x):
		dest = x + roll
		if dest >= HomeBase(p)+FiguresPerPlayer {
			return 0, false
		}

	default:
		return 0, false
	}

	if occupant := fields[dest]; occupant != -1 && PlayerOf(occupant) == p {
		return 0, false
	}
	return dest, true
}

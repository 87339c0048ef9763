// Package session tracks connected clients and their reliable delivery
// state.
//
// Each client has one Session identified by its UDP source address. The
// session carries the stop-and-wait counters for both directions plus the
// outbound frame queue. A Registry owns all sessions and enforces the
// concurrent client limit.
package session

import (
	"net"
	"sync"
	"time"
)

// NoGame marks a session that is not seated in any game.
const NoGame = -1

// Session is the per-client connection state.
//
// All fields are guarded by mu. Callers go through the Registry's WithAddr
// and WithIndex combinators, which acquire the lock for them; code holding
// a game lock may lock sessions directly, but never the other way around.
type Session struct {
	mu sync.Mutex

	// Index is the session's slot in the registry. Stable for the
	// session's lifetime.
	Index int

	// Addr is the client's current UDP source address. Rebound on
	// reconnect.
	Addr *net.UDPAddr

	// AddrKey is Addr.String(), kept for map lookups.
	AddrKey string

	// Active is false once the client has been silent past the
	// no-response window. Inactive clients keep their slot until the
	// reconnect window expires.
	Active bool

	// LastSeen is the time of the last valid datagram from this client.
	LastSeen time.Time

	// RecvSeq is the next sequence ID expected from the client.
	RecvSeq uint32

	// SendSeq is the sequence ID the next enqueued frame will carry.
	SendSeq uint32

	// GameIndex is the registry slot of the game this client sits in,
	// or NoGame.
	GameIndex int

	// Seat is the player slot within the game, or -1.
	Seat int

	// Token is the reconnect code handed out after CONNECT.
	Token string

	// Queue is the outbound stop-and-wait FIFO.
	Queue Queue

	removed bool
}

// Lock acquires the session lock. Exposed for game broadcast paths that
// iterate members while holding the game lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Enqueue appends a payload to the outbound queue, assigning it the next
// send sequence ID. Caller holds the session lock.
func (s *Session) Enqueue(payload string) {
	s.Queue.Push(&Outbound{
		Seq:     s.SendSeq,
		Payload: payload,
	})
	s.SendSeq++
}

// Touch records activity from the client and revives an inactive session.
// Caller holds the session lock.
func (s *Session) Touch(now time.Time) {
	s.LastSeen = now
	s.Active = true
}

// ResetStream restarts both stop-and-wait counters and drops any pending
// outbound frames. Called on CONNECT and RECONNECT; the handshake frame
// itself always carries sequence ID 1, so the next inbound frame is 2 and
// the server's own stream restarts at 1.
// Caller holds the session lock.
func (s *Session) ResetStream() {
	s.RecvSeq = 2
	s.SendSeq = 1
	s.Queue.Drain()
}

// Rebind points the session at a new source address. Caller holds the
// session lock; the registry's address index is updated by the caller.
func (s *Session) Rebind(addr *net.UDPAddr) {
	s.Addr = addr
	s.AddrKey = addr.String()
}

// InGame reports whether the session is seated in a game.
// Caller holds the session lock.
func (s *Session) InGame() bool {
	return s.GameIndex != NoGame
}

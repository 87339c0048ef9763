package server

import (
	"time"

	"github.com/feelus/cns-server/internal/logger"
	"github.com/feelus/cns-server/pkg/session"
)

// watchdogSweep walks all sessions and games once.
//
// Sessions silent past the no-response window are marked inactive, which
// starts their reconnect grace clock; sessions inactive past the client
// timeout are removed, leaving their game first. Game clocks (stalled
// turns, expired lobbies) are swept by the game registry.
func (s *Server) watchdogSweep(now time.Time) {
	for _, idx := range s.sessions.Indices() {
		var (
			markInactive bool
			expire       bool
		)

		s.sessions.WithIndex(idx, func(sess *session.Session) {
			silent := now.Sub(sess.LastSeen)

			switch {
			case sess.Active && silent > s.cfg.Game.NoResponseTimeout:
				sess.Active = false
				// Restart the clock: the reconnect grace period is
				// measured from inactivation.
				sess.LastSeen = now
				markInactive = true

			case !sess.Active && silent > s.cfg.Game.ClientTimeout:
				expire = true
			}
		})

		switch {
		case markInactive:
			logger.Info("client silent, marked inactive", "session", idx)
			s.games.MarkInactive(idx, now)

		case expire:
			logger.Info("inactive client expired", "session", idx)
			s.games.Leave(idx, now)
			s.sessions.Remove(idx, "timeout")
		}
	}

	s.games.Sweep(now)
}

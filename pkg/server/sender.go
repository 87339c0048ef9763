package server

import (
	"net"
	"time"

	"github.com/feelus/cns-server/internal/protocol/wire"
	"github.com/feelus/cns-server/pkg/session"
)

// outbound is a frame ready to put on the wire, captured under the
// session lock and sent outside it.
type outbound struct {
	data []byte
	addr *net.UDPAddr
}

// sendLoop sweeps every session's queue on a short period. Only the head
// frame of a queue is ever in flight; it is materialized lazily on first
// transmission and retransmitted when unacknowledged past the packet age
// limit.
func (s *Server) sendLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(senderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.sweepQueues(now)
		}
	}
}

func (s *Server) sweepQueues(now time.Time) {
	var batch []outbound
	queued := 0

	for _, idx := range s.sessions.Indices() {
		s.sessions.WithIndex(idx, func(sess *session.Session) {
			queued += sess.Queue.Len()

			head := sess.Queue.Head()
			if head == nil {
				return
			}

			switch {
			case head.SentAt.IsZero():
				if head.Built == nil {
					head.Built = wire.Format(s.cfg.Server.AppToken, head.Seq, head.Payload)
				}

			case now.Sub(head.SentAt) > s.cfg.Server.PacketMaxAge:
				if s.metrics != nil {
					s.metrics.RecordRetransmit()
				}

			default:
				return
			}

			head.SentAt = now
			batch = append(batch, outbound{data: head.Built, addr: sess.Addr})
		})
	}

	for _, o := range batch {
		if _, err := s.conn.WriteToUDP(o.data, o.addr); err != nil {
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordDatagramOut(commandOf(o.data))
		}
	}

	if s.metrics != nil {
		s.metrics.SetQueuedFrames(queued)
	}
}

// commandOf extracts the command head from a materialized frame for
// metrics labelling.
func commandOf(frame []byte) string {
	fields := 0
	start := 0
	for i, b := range frame {
		if b != ';' {
			continue
		}
		fields++
		if fields == 2 {
			start = i + 1
		} else if fields == 3 {
			return string(frame[start:i])
		}
	}
	if fields == 2 && start < len(frame) {
		return string(frame[start:])
	}
	return "unknown"
}

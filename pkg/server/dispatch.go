package server

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/feelus/cns-server/internal/logger"
	"github.com/feelus/cns-server/internal/protocol/wire"
	"github.com/feelus/cns-server/internal/telemetry"
	"github.com/feelus/cns-server/pkg/session"
)

// processDatagram parses one inbound datagram, runs the stop-and-wait
// sequence check and executes the command's side effects.
//
// Every accepted non-ACK frame is acknowledged before its side effects
// run; duplicates with a lower sequence ID get their ACK replayed and no
// side effects; frames from the future are dropped.
func (s *Server) processDatagram(data []byte, addr *net.UDPAddr, now time.Time) {
	frame, ok := wire.Parse(s.cfg.Server.AppToken, data)
	if !ok {
		s.recordDrop("bad_frame")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordDatagramIn(frame.Command)
	}

	ctx, span := telemetry.StartCommandSpan(context.Background(), frame.Command, frame.Seq, addr.String())
	defer span.End()

	ctx = logger.NewContext(ctx, &logger.LogContext{
		TraceID:    telemetry.TraceID(ctx),
		Command:    frame.Command,
		ClientAddr: addr.String(),
	})

	switch frame.Command {
	case wire.CmdConnect:
		s.handleConnect(ctx, addr, now)
		return
	case wire.CmdReconnect:
		s.handleReconnect(ctx, &frame, addr, now)
		return
	}

	idx, found := s.sessions.IndexByAddr(addr.String())
	if !found {
		s.recordDrop("unknown_session")
		telemetry.SetAttributes(ctx, telemetry.DropCause("unknown_session"))
		return
	}

	// ACKs retire our own outbound head and do not consume the client's
	// data-frame sequence, so they skip the expected-sequence check.
	if frame.Command == wire.CmdAck {
		s.sessions.WithIndex(idx, func(sess *session.Session) {
			sess.Touch(now)
			s.consumeAck(sess, &frame)
		})
		return
	}

	// Sequence check under the session lock; side effects run after it
	// is released so game operations can lock sessions freely.
	accepted := false
	s.sessions.WithIndex(idx, func(sess *session.Session) {
		sess.Touch(now)

		switch {
		case frame.Seq == sess.RecvSeq:
			accepted = true
			sess.RecvSeq++
			s.writeRaw(wire.FormatAck(s.cfg.Server.AppToken, frame.Seq), sess.Addr, wire.MsgAck)

		case frame.Seq < sess.RecvSeq:
			// Our ACK was lost; replay it without re-running side effects.
			s.writeRaw(wire.FormatAck(s.cfg.Server.AppToken, frame.Seq), sess.Addr, wire.MsgAck)
			if s.metrics != nil {
				s.metrics.RecordReplay()
			}
			telemetry.SetAttributes(ctx, telemetry.Replay(true))

		default:
			s.recordDrop("future_seq")
			telemetry.SetAttributes(ctx, telemetry.DropCause("future_seq"))
		}
	})

	if !accepted {
		return
	}

	telemetry.SetAttributes(ctx, telemetry.ClientSession(idx))

	switch frame.Command {
	case wire.CmdCreateGame:
		s.games.Create(idx, now)

	case wire.CmdJoinGame:
		s.games.Join(idx, frame.Arg(0), now)

	case wire.CmdLeaveGame:
		if s.games.Leave(idx, now) {
			s.enqueue(idx, wire.MsgGameLeft)
		}

	case wire.CmdStartGame:
		s.games.Start(idx, now)

	case wire.CmdDieRoll:
		s.games.Roll(idx, now)

	case wire.CmdFigureMove:
		figure, err := strconv.Atoi(frame.Arg(0))
		if err != nil {
			s.games.RecoverState(idx, now)
			return
		}
		s.games.Move(idx, figure, now)

	case wire.CmdMessage:
		s.games.Chat(idx, frame.Text(0))

	case wire.CmdKeepalive:
		// Touch already refreshed the activity clock.

	case wire.CmdClose:
		s.games.Leave(idx, now)
		s.sessions.Remove(idx, "close")
		logger.InfoCtx(ctx, "client closed connection", "session", idx)

	default:
		s.recordDrop("unknown_command")
		logger.WarnCtx(ctx, "unknown command dropped")
	}
}

// handleConnect admits a new client. The handshake ACK and any rejection
// are sent raw: the session's reliable stream starts after it.
func (s *Server) handleConnect(ctx context.Context, addr *net.UDPAddr, now time.Time) {
	result, idx := s.sessions.Admit(addr, now)

	switch result {
	case session.AdmitFull:
		// Emitted once, unreliable; the client retries CONNECT anyway.
		s.writeRaw(wire.Format(s.cfg.Server.AppToken, 1, wire.MsgServerFull), addr, wire.MsgServerFull)
		logger.WarnCtx(ctx, "connection rejected, server full")

	case session.AdmitLimited:
		s.recordDrop("rate_limited")
		logger.WarnCtx(ctx, "connection rejected, admission rate limited")

	case session.AdmitExisting:
		// Duplicate CONNECT: our handshake ACK was lost. Re-ACK without
		// resetting the stream.
		s.writeRaw(wire.FormatAck(s.cfg.Server.AppToken, 1), addr, wire.MsgAck)

	case session.AdmitAdded:
		s.writeRaw(wire.FormatAck(s.cfg.Server.AppToken, 1), addr, wire.MsgAck)
		s.sessions.WithIndex(idx, func(sess *session.Session) {
			sess.Enqueue(wire.MsgReconnectCode + ";" + sess.Token)
		})
		logger.InfoCtx(ctx, "client admitted", "session", idx)
	}
}

// handleReconnect rebinds an existing session to a new source address,
// restarts both sequence streams and pushes the game state back to the
// client.
func (s *Server) handleReconnect(ctx context.Context, frame *wire.Frame, addr *net.UDPAddr, now time.Time) {
	token := frame.Arg(0)
	idx, found := s.sessions.IndexByToken(token)
	if !found {
		s.recordDrop("unknown_token")
		logger.WarnCtx(ctx, "reconnect with unknown token dropped")
		return
	}

	s.sessions.Rebind(idx, addr)
	s.sessions.WithIndex(idx, func(sess *session.Session) {
		sess.ResetStream()
		sess.Touch(now)
	})

	s.writeRaw(wire.FormatAck(s.cfg.Server.AppToken, 1), addr, wire.MsgAck)
	s.games.Reconnected(idx, now)

	logger.InfoCtx(ctx, "client reconnected", "session", idx)
}

// consumeAck pops the acknowledged head frame. Caller holds the session
// lock.
func (s *Server) consumeAck(sess *session.Session, frame *wire.Frame) {
	acked, err := strconv.ParseUint(frame.Arg(0), 10, 32)
	if err != nil {
		return
	}
	if head := sess.Queue.Head(); head != nil && head.Seq == uint32(acked) {
		sess.Queue.Pop()
	}
}

// enqueue appends a payload to a session's reliable stream.
func (s *Server) enqueue(idx int, payload string) {
	s.sessions.WithIndex(idx, func(sess *session.Session) {
		sess.Enqueue(payload)
	})
}

// writeRaw sends a frame outside any reliable stream (ACKs, handshake
// rejections, shutdown notices).
func (s *Server) writeRaw(frame []byte, addr *net.UDPAddr, command string) {
	if _, err := s.conn.WriteToUDP(frame, addr); err != nil {
		logger.Debug("raw send failed", "client", addr.String(), "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordDatagramOut(command)
	}
}

func (s *Server) recordDrop(cause string) {
	if s.metrics != nil {
		s.metrics.RecordDrop(cause)
	}
}

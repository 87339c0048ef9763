// Package server binds the UDP socket and runs the three long-lived
// loops: the receiver that dispatches inbound datagrams, the sender that
// sweeps the per-session outbound queues, and the watchdog that expires
// silent clients and stalled games.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/feelus/cns-server/internal/logger"
	"github.com/feelus/cns-server/internal/protocol/wire"
	"github.com/feelus/cns-server/pkg/bufpool"
	"github.com/feelus/cns-server/pkg/config"
	"github.com/feelus/cns-server/pkg/game"
	"github.com/feelus/cns-server/pkg/metrics"
	"github.com/feelus/cns-server/pkg/session"
)

const (
	senderInterval   = 10 * time.Millisecond
	watchdogInterval = time.Second
	readTimeout      = time.Second
)

// Server is the UDP game server.
type Server struct {
	cfg      *config.Config
	sessions *session.Registry
	games    *game.Registry
	metrics  metrics.ServerMetrics

	conn    *net.UDPConn
	buffers *bufpool.Pool

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New creates a server from the given configuration. Both metrics
// arguments may be nil.
func New(cfg *config.Config, sm metrics.ServerMetrics, gm metrics.GameMetrics) *Server {
	sessions := session.NewRegistry(
		cfg.Server.MaxClients,
		cfg.Game.ReconnectCodeLen,
		cfg.Server.ConnectRate,
		cfg.Server.ConnectBurst,
		sm,
	)
	games := game.NewRegistry(cfg.Server.MaxClients, sessions, cfg.Game, gm)

	return &Server{
		cfg:      cfg,
		sessions: sessions,
		games:    games,
		metrics:  sm,
		buffers:  bufpool.New(cfg.Server.MaxDgramSize),
		shutdown: make(chan struct{}),
	}
}

// Games exposes the game registry for the admin console.
func (s *Server) Games() *game.Registry {
	return s.games
}

// Sessions exposes the session registry for the admin console.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// Serve binds the socket and runs until ctx is cancelled. On return the
// socket is closed and all loops have exited.
func (s *Server) Serve(ctx context.Context) error {
	addr := &net.UDPAddr{
		IP:   net.ParseIP(s.cfg.Server.BindIP),
		Port: s.cfg.Server.Port,
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", addr, err)
	}
	s.conn = conn

	logger.Info("server listening",
		"addr", conn.LocalAddr().String(),
		"max_clients", s.cfg.Server.MaxClients)

	s.wg.Add(3)
	go s.receiveLoop()
	go s.sendLoop()
	go s.watchdogLoop()

	<-ctx.Done()
	return s.stop()
}

// stop announces the shutdown to all clients, closes the socket and joins
// the loops.
func (s *Server) stop() error {
	logger.Info("server shutting down")

	// Best-effort, unreliable by design: clients that miss the frame
	// fall back to their own timeout.
	for _, idx := range s.sessions.Indices() {
		s.sessions.WithIndex(idx, func(sess *session.Session) {
			frame := wire.Format(s.cfg.Server.AppToken, sess.SendSeq, wire.MsgServerShutdown)
			_, _ = s.conn.WriteToUDP(frame, sess.Addr)
		})
		s.sessions.Remove(idx, "shutdown")
	}

	close(s.shutdown)
	err := s.conn.Close()
	s.wg.Wait()

	logger.Info("server stopped")
	return err
}

// receiveLoop blocks on the socket with a short deadline so it can notice
// shutdown, and hands every datagram to the dispatcher.
func (s *Server) receiveLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		buf := s.buffers.Get()
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			s.buffers.Put(buf)
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return
			default:
				logger.Error("socket read failed", "error", err)
				return
			}
		}

		s.processDatagram(buf[:n], addr, time.Now())
		s.buffers.Put(buf)
	}
}

// watchdogLoop expires silent sessions and runs the per-game clocks.
func (s *Server) watchdogLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.watchdogSweep(now)
		}
	}
}

package metrics

// ServerMetrics provides observability for the datagram transport and
// session lifecycle.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewServerMetrics()
//	srv := server.New(cfg, m)
//
//	// Without metrics (pass nil for zero overhead)
//	srv := server.New(cfg, nil)
type ServerMetrics interface {
	// RecordDatagramIn records a received datagram by command name.
	// Unparseable datagrams are recorded under the "invalid" command.
	RecordDatagramIn(command string)

	// RecordDatagramOut records a transmitted datagram by command name.
	RecordDatagramOut(command string)

	// RecordDrop records an inbound datagram dropped before dispatch.
	// Cause is one of: "bad_token", "bad_seq", "oversize", "unknown_session",
	// "future_seq", "unknown_command".
	RecordDrop(cause string)

	// RecordRetransmit records a head-of-queue frame resent after the
	// acknowledgment deadline passed.
	RecordRetransmit()

	// RecordReplay records a duplicate inbound frame answered with a
	// replayed acknowledgment.
	RecordReplay()

	// RecordSessionAdmitted increments the admitted sessions counter.
	RecordSessionAdmitted()

	// RecordSessionRemoved increments the removed sessions counter.
	// Cause is one of: "close", "timeout", "shutdown".
	RecordSessionRemoved(cause string)

	// SetActiveSessions updates the current session count.
	SetActiveSessions(count int)

	// SetQueuedFrames updates the total number of frames waiting in
	// outbound queues across all sessions.
	SetQueuedFrames(count int)
}

// GameMetrics provides observability for game lifecycle and play.
//
// Like ServerMetrics, pass nil to disable collection.
type GameMetrics interface {
	// RecordGameCreated increments the created games counter.
	RecordGameCreated()

	// RecordGameStarted increments the started games counter.
	RecordGameStarted()

	// RecordGameFinished increments the finished games counter.
	// Cause is one of: "finished", "abandoned", "expired".
	RecordGameFinished(cause string)

	// RecordDieRoll records a die roll with its value (1-6).
	RecordDieRoll(value int)

	// RecordFigureMove increments the moved figures counter.
	// Kind is one of: "deploy", "advance", "capture", "home".
	RecordFigureMove(kind string)

	// RecordTurnTimeout increments the skipped turns counter for players
	// that went silent during their turn.
	RecordTurnTimeout()

	// SetActiveGames updates the current game count by lifecycle state
	// ("lobby" or "running").
	SetActiveGames(state string, count int)
}

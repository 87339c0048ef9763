package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for protocol and game operations.
// These follow OpenTelemetry semantic conventions where applicable.
// Protocol-level keys use "dgram." prefix, game-level keys use "game.".
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP      = "client.ip"
	AttrClientAddr    = "client.address"
	AttrClientPort    = "client.port"
	AttrClientSession = "client.session"

	// ========================================================================
	// Datagram protocol attributes
	// ========================================================================
	AttrCommand   = "dgram.command"
	AttrSeq       = "dgram.seq"
	AttrSize      = "dgram.size"
	AttrDropCause = "dgram.drop_cause"
	AttrReplay    = "dgram.replay"

	// ========================================================================
	// Game attributes
	// ========================================================================
	AttrGameCode    = "game.code"
	AttrGameIndex   = "game.index"
	AttrGameState   = "game.state"
	AttrGamePlayers = "game.players"
	AttrPlayerSlot  = "game.player_slot"
	AttrFigure      = "game.figure"
	AttrDieValue    = "game.die_value"
)

// Span names for operations.
// Format: dgram.<COMMAND> for inbound commands, <component>.<operation>
// for internal operations.
const (
	// Root span for datagram processing
	SpanDgramRequest = "dgram.request"

	// Inbound commands
	SpanConnect    = "dgram.CONNECT"
	SpanReconnect  = "dgram.RECONNECT"
	SpanCreateGame = "dgram.CREATE_GAME"
	SpanJoinGame   = "dgram.JOIN_GAME"
	SpanLeaveGame  = "dgram.LEAVE_GAME"
	SpanStartGame  = "dgram.START_GAME"
	SpanDieRoll    = "dgram.DIE_ROLL"
	SpanFigureMove = "dgram.FIGURE_MOVE"
	SpanMessage    = "dgram.MESSAGE"
	SpanKeepalive  = "dgram.KEEPALIVE"
	SpanClose      = "dgram.CLOSE"
	SpanAck        = "dgram.ACK"

	// Internal operations
	SpanSessionAdmit   = "session.admit"
	SpanSessionRemove  = "session.remove"
	SpanGameBroadcast  = "game.broadcast"
	SpanGameTimeout    = "game.timeout"
	SpanWatchdogSweep  = "watchdog.sweep"
	SpanSenderFlush    = "sender.flush"
	SpanServerShutdown = "server.shutdown"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ClientSession returns an attribute for the session slot index
func ClientSession(index int) attribute.KeyValue {
	return attribute.Int(AttrClientSession, index)
}

// Command returns an attribute for the inbound command name
func Command(cmd string) attribute.KeyValue {
	return attribute.String(AttrCommand, cmd)
}

// Seq returns an attribute for the datagram sequence ID
func Seq(seq uint32) attribute.KeyValue {
	return attribute.Int64(AttrSeq, int64(seq))
}

// DgramSize returns an attribute for the raw datagram size
func DgramSize(n int) attribute.KeyValue {
	return attribute.Int(AttrSize, n)
}

// DropCause returns an attribute naming why a datagram was dropped
func DropCause(cause string) attribute.KeyValue {
	return attribute.String(AttrDropCause, cause)
}

// Replay returns an attribute marking a duplicate that triggered an ACK replay
func Replay(replayed bool) attribute.KeyValue {
	return attribute.Bool(AttrReplay, replayed)
}

// GameCode returns an attribute for the game's join code
func GameCode(code string) attribute.KeyValue {
	return attribute.String(AttrGameCode, code)
}

// GameIndex returns an attribute for the game's registry slot
func GameIndex(index int) attribute.KeyValue {
	return attribute.Int(AttrGameIndex, index)
}

// GameState returns an attribute for the game lifecycle state
func GameState(state string) attribute.KeyValue {
	return attribute.String(AttrGameState, state)
}

// GamePlayers returns an attribute for the current player count
func GamePlayers(n int) attribute.KeyValue {
	return attribute.Int(AttrGamePlayers, n)
}

// PlayerSlot returns an attribute for a player's seat within the game
func PlayerSlot(slot int) attribute.KeyValue {
	return attribute.Int(AttrPlayerSlot, slot)
}

// Figure returns an attribute for a board figure index
func Figure(figure int) attribute.KeyValue {
	return attribute.Int(AttrFigure, figure)
}

// DieValue returns an attribute for a die roll result
func DieValue(value int) attribute.KeyValue {
	return attribute.Int(AttrDieValue, value)
}

// StartCommandSpan starts a span for an inbound datagram command.
// This is a convenience function that sets common attributes.
func StartCommandSpan(ctx context.Context, command string, seq uint32, addr string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Command(command),
		Seq(seq),
		ClientAddr(addr),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "dgram."+command, trace.WithAttributes(allAttrs...))
}

// StartGameSpan starts a span for an internal game operation.
func StartGameSpan(ctx context.Context, operation string, code string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		GameCode(code),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "game."+operation, trace.WithAttributes(allAttrs...))
}

// StartSessionSpan starts a span for a session registry operation.
func StartSessionSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "session."+operation, trace.WithAttributes(attrs...))
}

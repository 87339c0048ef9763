// Package wire implements the semicolon-delimited datagram framing used
// between the game server and its clients.
//
// Every frame is a text record of the form
//
//	<TOKEN>;<seq>;<COMMAND>[;arg;arg;...]
//
// where TOKEN is a fixed application token shared by server and clients,
// seq is a positive decimal sequence ID, and COMMAND selects the handler.
// Parsing is side-effect free; a frame that fails token or sequence
// validation is reported as invalid and dropped by the caller.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultToken is the application token the original deployment shipped with.
// It can be overridden through configuration as long as clients agree.
const DefaultToken = "A12B0698P"

// MaxDatagramSize bounds both the receive buffer and any frame the server
// is willing to materialize.
const MaxDatagramSize = 512

// Client commands.
const (
	CmdConnect    = "CONNECT"
	CmdReconnect  = "RECONNECT"
	CmdCreateGame = "CREATE_GAME"
	CmdJoinGame   = "JOIN_GAME"
	CmdLeaveGame  = "LEAVE_GAME"
	CmdStartGame  = "START_GAME"
	CmdDieRoll    = "DIE_ROLL"
	CmdFigureMove = "FIGURE_MOVE"
	CmdMessage    = "MESSAGE"
	CmdKeepalive  = "KEEPALIVE"
	CmdClose      = "CLOSE"
	CmdAck        = "ACK"
)

// Server message heads. These are payload prefixes; the sender layer
// prepends token and sequence ID when it materializes a frame.
const (
	MsgAck             = "ACK"
	MsgReconnectCode   = "RECONNECT_CODE"
	MsgGameCreated     = "GAME_CREATED"
	MsgGameState       = "GAME_STATE"
	MsgClientJoined    = "CLIENT_JOINED_GAME"
	MsgClientLeft      = "CLIENT_LEFT_GAME"
	MsgClientReconnect = "CLIENT_RECONNECT"
	MsgClientTimeout   = "CLIENT_TIMEOUT"
	MsgGameStarted     = "GAME_STARTED"
	MsgRolledDie       = "ROLLED_DIE"
	MsgPlayingIndex    = "PLAYING_INDEX"
	MsgFigureMoved     = "FIGURE_MOVED"
	MsgGameFinished    = "GAME_FINISHED"
	MsgGameFull        = "GAME_FULL"
	MsgGameRunning     = "GAME_RUNNING"
	MsgGameNonexistent = "GAME_NONEXISTENT"
	MsgGameLeft        = "GAME_LEFT"
	MsgServerFull      = "SERVER_FULL"
	MsgServerShutdown  = "SERVER_SHUTDOWN"
	MsgMessage         = "MESSAGE"
)

// Frame is a decoded inbound datagram.
type Frame struct {
	// Seq is the sender's sequence ID for this frame. Always > 0.
	Seq uint32

	// Command is the third field of the frame, e.g. "CONNECT".
	Command string

	// Args holds the remaining fields, if any. MESSAGE payloads may
	// themselves contain semicolons, so handlers that take free text
	// should join the tail instead of indexing it.
	Args []string
}

// Arg returns argument i or the empty string when the frame is shorter.
func (f *Frame) Arg(i int) string {
	if i < 0 || i >= len(f.Args) {
		return ""
	}
	return f.Args[i]
}

// Text reassembles the argument tail starting at i. Used by MESSAGE, whose
// payload is free text that may contain the field separator.
func (f *Frame) Text(i int) string {
	if i < 0 || i >= len(f.Args) {
		return ""
	}
	return strings.Join(f.Args[i:], ";")
}

// Parse decodes a raw datagram. It returns ok=false when the frame does not
// carry the expected token, the sequence ID is not a positive integer, or
// the frame has fewer than three fields. Such frames are silently dropped
// by the transport per the protocol's failure model.
func Parse(token string, data []byte) (Frame, bool) {
	if len(data) == 0 || len(data) > MaxDatagramSize {
		return Frame{}, false
	}

	fields := strings.Split(strings.TrimRight(string(data), "\r\n\x00"), ";")
	if len(fields) < 3 {
		return Frame{}, false
	}

	if fields[0] != token {
		return Frame{}, false
	}

	seq, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil || seq == 0 {
		return Frame{}, false
	}

	f := Frame{
		Seq:     uint32(seq),
		Command: fields[2],
	}
	if len(fields) > 3 {
		f.Args = fields[3:]
	}

	return f, true
}

// Format materializes an on-wire frame from a payload that already contains
// the command head (e.g. "GAME_CREATED;ABCDE;35999").
func Format(token string, seq uint32, payload string) []byte {
	return []byte(fmt.Sprintf("%s;%d;%s", token, seq, payload))
}

// FormatAck materializes an acknowledgment for the given sequence ID. ACK
// frames mirror the acknowledged ID in their own sequence field; they are
// not part of the stop-and-wait stream.
func FormatAck(token string, seq uint32) []byte {
	return []byte(fmt.Sprintf("%s;%d;%s;%d", token, seq, MsgAck, seq))
}

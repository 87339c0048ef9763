package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Parse Tests
// ============================================================================

func TestParse_ValidFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantSeq uint32
		wantCmd string
		wantArg []string
	}{
		{"connect", "A12B0698P;1;CONNECT", 1, "CONNECT", nil},
		{"reconnect with token", "A12B0698P;1;RECONNECT;xK4f", 1, "RECONNECT", []string{"xK4f"}},
		{"join with code", "A12B0698P;7;JOIN_GAME;QWERT", 7, "JOIN_GAME", []string{"QWERT"}},
		{"ack", "A12B0698P;3;ACK;2", 3, "ACK", []string{"2"}},
		{"figure move", "A12B0698P;12;FIGURE_MOVE;5", 12, "FIGURE_MOVE", []string{"5"}},
		{"trailing newline", "A12B0698P;2;KEEPALIVE\n", 2, "KEEPALIVE", nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, ok := Parse(DefaultToken, []byte(tt.raw))
			require.True(t, ok)
			assert.Equal(t, tt.wantSeq, f.Seq)
			assert.Equal(t, tt.wantCmd, f.Command)
			assert.Equal(t, tt.wantArg, f.Args)
		})
	}
}

func TestParse_InvalidFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"wrong token", "BADTOKEN;1;CONNECT"},
		{"token prefix only", "A12B0698;1;CONNECT"},
		{"missing command", "A12B0698P;1"},
		{"zero seq", "A12B0698P;0;CONNECT"},
		{"negative seq", "A12B0698P;-4;CONNECT"},
		{"non numeric seq", "A12B0698P;abc;CONNECT"},
		{"garbage", "hello world"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, ok := Parse(DefaultToken, []byte(tt.raw))
			assert.False(t, ok)
		})
	}
}

func TestParse_OversizedDatagramDropped(t *testing.T) {
	t.Parallel()

	raw := DefaultToken + ";1;MESSAGE;" + strings.Repeat("x", MaxDatagramSize)
	_, ok := Parse(DefaultToken, []byte(raw))
	assert.False(t, ok)
}

func TestFrame_TextJoinsSemicolons(t *testing.T) {
	t.Parallel()

	f, ok := Parse(DefaultToken, []byte("A12B0698P;4;MESSAGE;hi;there;all"))
	require.True(t, ok)
	assert.Equal(t, "hi;there;all", f.Text(0))
	assert.Equal(t, "there;all", f.Text(1))
	assert.Equal(t, "", f.Text(5))
}

func TestFrame_ArgOutOfRange(t *testing.T) {
	t.Parallel()

	f, ok := Parse(DefaultToken, []byte("A12B0698P;4;JOIN_GAME;CODE1"))
	require.True(t, ok)
	assert.Equal(t, "CODE1", f.Arg(0))
	assert.Equal(t, "", f.Arg(1))
	assert.Equal(t, "", f.Arg(-1))
}

// ============================================================================
// Format Tests
// ============================================================================

func TestFormat(t *testing.T) {
	t.Parallel()

	got := Format(DefaultToken, 3, "GAME_CREATED;ABCDE;35999")
	assert.Equal(t, "A12B0698P;3;GAME_CREATED;ABCDE;35999", string(got))
}

func TestFormatAck_MirrorsSequence(t *testing.T) {
	t.Parallel()

	got := FormatAck(DefaultToken, 9)
	assert.Equal(t, "A12B0698P;9;ACK;9", string(got))
}

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()

	raw := Format(DefaultToken, 8, "PLAYING_INDEX;2;45")
	f, ok := Parse(DefaultToken, raw)
	require.True(t, ok)
	assert.Equal(t, uint32(8), f.Seq)
	assert.Equal(t, "PLAYING_INDEX", f.Command)
	assert.Equal(t, []string{"2", "45"}, f.Args)
}

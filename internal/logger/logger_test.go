package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Level Tests
// ============================================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"DEBUG", LevelDebug, true},
		{"debug", LevelDebug, true},
		{"4", LevelDebug, true},
		{"5", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"3", LevelInfo, true},
		{"WARN", LevelWarn, true},
		{"2", LevelWarn, true},
		{"ERROR", LevelError, true},
		{"1", LevelError, true},
		{"0", LevelError, true},
		{"  info ", LevelInfo, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseLevel(%q)", tt.in)
		if ok {
			assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
		}
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

// ============================================================================
// Output Tests
// ============================================================================

func TestTextOutputContainsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	Info("client connected", "client", "10.0.0.1:4242", "session", 3)

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "client connected")
	assert.Contains(t, out, "client=10.0.0.1:4242")
	assert.Contains(t, out, "session=3")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Debug("dropped datagram")
	Info("client connected")
	Warn("retransmit limit")

	out := buf.String()
	assert.NotContains(t, out, "dropped datagram")
	assert.NotContains(t, out, "client connected")
	assert.Contains(t, out, "retransmit limit")
}

func TestRuntimeLevelChange(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "ERROR", "text", false)

	Debug("before")
	SetLevel("DEBUG")
	Debug("after")

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
	assert.Equal(t, LevelDebug, GetLevel())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("game created", "game_code", "QWERT")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "game created", record["msg"])
	assert.Equal(t, "QWERT", record["game_code"])
}

func TestInvalidLevelAndFormatIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("loud")
	SetFormat("xml")

	assert.Equal(t, LevelInfo, GetLevel())

	Info("still text")
	assert.True(t, strings.Contains(buf.String(), "[INFO]"))
}

// ============================================================================
// Context Tests
// ============================================================================

func TestContextFieldsInjected(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	ctx := NewContext(context.Background(), &LogContext{
		Command:    "DIE_ROLL",
		GameCode:   "ABCDE",
		ClientAddr: "10.0.0.1:5000",
		Session:    7,
	})

	InfoCtx(ctx, "die rolled", "value", 6)

	out := buf.String()
	assert.Contains(t, out, "command=DIE_ROLL")
	assert.Contains(t, out, "game_code=ABCDE")
	assert.Contains(t, out, "client=10.0.0.1:5000")
	assert.Contains(t, out, "session=7")
	assert.Contains(t, out, "value=6")
}

func TestFromContextMissing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

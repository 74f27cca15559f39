package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("debug")

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		SetLevel(tt.input)
		require.Equal(t, tt.want, zerolog.GlobalLevel(), tt.input)
	}
}

func TestSetOutput(t *testing.T) {
	original := Log
	defer func() { Log = original }()

	var buf bytes.Buffer
	SetOutput(&buf)
	Log.Info().Str("sender_hash", "abcd1234").Msg("test message")

	require.Contains(t, buf.String(), `"sender_hash":"abcd1234"`)
	require.Contains(t, buf.String(), `"message":"test message"`)
}

func TestConfigure(t *testing.T) {
	original := Log
	defer func() {
		Log = original
		SetLevel("debug")
	}()

	Configure("warn", false)
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Configure("error", true)
	require.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

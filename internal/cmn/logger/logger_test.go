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

func TestLogger_SourceLocation(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(Logger)
	}{
		{name: "Info", logFunc: func(l Logger) { l.Info("test message") }},
		{name: "Debug", logFunc: func(l Logger) { l.Debug("debug message") }},
		{name: "Warn", logFunc: func(l Logger) { l.Warn("warn message") }},
		{name: "Error", logFunc: func(l Logger) { l.Error("error message") }},
		{name: "Infof", logFunc: func(l Logger) { l.Infof("formatted %s", "message") }},
		{name: "Debugf", logFunc: func(l Logger) { l.Debugf("debug %d", 42) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(WithDebug(), WithFormat("text"), WithWriter(&buf), WithQuiet())
			tt.logFunc(l)

			out := buf.String()
			assert.Contains(t, out, "logger_test.go:")
			assert.NotContains(t, out, "cmn/logger/logger.go")
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat("json"), WithWriter(&buf), WithQuiet())

	l.With("run-id", "abc").Info("snapshot written", "tick", 50)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "snapshot written", entry["msg"])
	assert.Equal(t, "abc", entry["run-id"])
	assert.EqualValues(t, 50, entry["tick"])
}

func TestLogger_DebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithWriter(&buf), WithQuiet())

	l.Debug("hidden")
	l.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestLogger_Write(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithWriter(&buf), WithQuiet())

	l.Write("[E:0][T:1] free form line")
	assert.Equal(t, "[E:0][T:1] free form line\n", buf.String())
}

func TestContext(t *testing.T) {
	t.Run("DefaultWhenMissing", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("WithValues", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithLogger(context.Background(), NewLogger(WithWriter(&buf), WithQuiet()))
		ctx = WithValues(ctx, "role", "gen", "dangling")

		Info(ctx, "grown")

		out := buf.String()
		assert.True(t, strings.Contains(out, "role=gen"), out)
		assert.Contains(t, out, "MISSING_VALUE")
	})
}

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNamedLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, zerolog.DebugLevel)

	logger := p.GetLoggerWithName("loader").With(PathKey, "X_test.csv")
	logger.Info("Table loaded", RowsKey, 42)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "loader", lines[0][ComponentKey])
	assert.Equal(t, "X_test.csv", lines[0][PathKey])
	assert.Equal(t, float64(42), lines[0][RowsKey])
	assert.Equal(t, "Table loaded", lines[0]["message"])
	assert.Equal(t, "info", lines[0]["level"])
}

func TestErrorLeadingErrorField(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, zerolog.InfoLevel)

	p.GetLogger().Error("Load failed", errors.New("boom"), PathKey, "model.json")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "model.json", lines[0][PathKey])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, zerolog.WarnLevel)

	l := p.GetLogger()
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestToLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ToLogLevel(in), in)
	}
}

func TestGlobalProvider(t *testing.T) {
	prev := Provider()
	defer SetProvider(prev)

	var buf bytes.Buffer
	SetupJSONLogger(&buf, "info")
	GetLoggerWithName("dashboard").Info("started")
	LogError(errors.New("bad"), "failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "dashboard", lines[0][ComponentKey])
	assert.Equal(t, "bad", lines[1]["error"])
}

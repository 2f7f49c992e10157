package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFormatsKeyValues(t *testing.T) {
	SetLevel(LevelDebug)
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "Test").With("job", "j1")
	l.Warn("band skipped", "page", 2, "line", "Total assets")

	out := buf.String()
	assert.Contains(t, out, "[Test] ")
	assert.Contains(t, out, "[WARN] band skipped job=j1 page=2 line=\"Total assets\"")
}

func TestLoggerThreshold(t *testing.T) {
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "Test")
	l.Info("hidden")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Error("shown")
	assert.Contains(t, buf.String(), "[ERROR] shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, "INFO", LevelInfo.String())
}

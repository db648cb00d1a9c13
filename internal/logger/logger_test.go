package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	assert.Equal(t, "WARN: warn 3\nERROR: error 4\n", buf.String())
}

func TestNestedTags(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelInfo).WithTag("core").WithTag("fsm")

	l.Infof("State transition: %s -> %s", "idle", "wait-start-bar")
	assert.Equal(t, "[core/fsm] State transition: idle -> wait-start-bar\n", buf.String())
}

func TestNilLoggerDiscards(t *testing.T) {
	l := NewLogger(nil, LogLevelDebug)
	assert.NotPanics(t, func() { l.Debugf("nothing to see") })
	assert.True(t, l.Enabled(LogLevelDebug))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug":   LogLevelDebug,
		"WARN":    LogLevelWarning,
		"warning": LogLevelWarning,
		"3":       LogLevelInfo,
		" none ":  LogLevelNone,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "info", LogLevelInfo.String())
}

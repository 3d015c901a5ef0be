package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
)

func TestDefaultWriter(t *testing.T) {
	s := NewSimpleLogSink(nil, 1, false)
	require.Equal(t, os.Stderr, s.writer)
}

func TestEnabled(t *testing.T) {
	s := NewSimpleLogSink(&bytes.Buffer{}, LEVEL_DEBUG, false)
	require.True(t, s.Enabled(LEVEL_INFO))
	require.True(t, s.Enabled(LEVEL_DEBUG))
	require.False(t, s.Enabled(LEVEL_TRACE))
}

func TestSimpleLogSink(t *testing.T) {
	tests := []struct {
		name     string
		logFn    func(s *SimpleLogSink)
		contains []string
		empty    bool
	}{
		{
			name:     "info with values",
			logFn:    func(s *SimpleLogSink) { s.Info(0, "opened image", "format", "cdrwin") },
			contains: []string{"[INFO] opened image", "  format: cdrwin"},
		},
		{
			name:  "level above verbosity is dropped",
			logFn: func(s *SimpleLogSink) { s.Info(2, "read plan", "offset", 16) },
			empty: true,
		},
		{
			name:     "error appends the error value",
			logFn:    func(s *SimpleLogSink) { s.Error(errors.New("boom"), "open failed", "path", "a.cue") },
			contains: []string{"[ERROR] open failed", "path: a.cue", "error: boom"},
		},
		{
			name:     "chained names",
			logFn:    func(s *SimpleLogSink) { s.WithName("disc").WithName("cdrwin").Info(0, "hello") },
			contains: []string{"[disc.cdrwin] hello"},
		},
		{
			name:     "attached values come first",
			logFn:    func(s *SimpleLogSink) { s.WithValues("track", 2).Info(1, "built track", "sectors", 100) },
			contains: []string{"[DEBUG] built track", "track: 2\n  sectors: 100"},
		},
		{
			name:     "non string key",
			logFn:    func(s *SimpleLogSink) { s.Info(0, "odd", 123, "value") },
			contains: []string{"key0: value"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFn(NewSimpleLogSink(buf, LEVEL_DEBUG, false))
			if tt.empty {
				require.Zero(t, buf.Len())
				return
			}
			for _, c := range tt.contains {
				require.Contains(t, buf.String(), c)
			}
		})
	}
}

func TestInitSetsCallDepth(t *testing.T) {
	s := NewSimpleLogSink(&bytes.Buffer{}, 1, false)
	s.Init(logr.RuntimeInfo{CallDepth: 5})
	require.Equal(t, 5, s.callDepth)
}

func TestLoggerWrapper(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(NewSimpleLogger(buf, LEVEL_DEBUG, false)).WithName("nero")
	log.Info("open")
	log.Debug("chunk", "id", "CUEX")
	log.Trace("hidden")
	require.False(t, log.TraceEnabled())
	require.Contains(t, buf.String(), "[INFO] [nero] open")
	require.Contains(t, buf.String(), "id: CUEX")
	require.NotContains(t, buf.String(), "hidden")

	// A zero logr.Logger must not panic.
	NewLogger(logr.Logger{}).Info("dropped")
	DefaultLogger().Error(errors.New("x"), "dropped")
}

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"  Error  ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		parseLevel(tt.input)
		assert.Equal(t, tt.want, level.Level(), "parseLevel(%q)", tt.input)
	}
	SetLevel(slog.LevelInfo)
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"", "console", "TEXT", "json"} {
		assert.True(t, ValidFormat(f), f)
	}
	assert.False(t, ValidFormat("xml"))
}

var consoleLine = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}: `)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	logger := slog.New(NewConsoleHandler(&buf, &lv))

	logger.Info("GET request for key: key1", "key", "key1")
	line := buf.String()
	require.True(t, consoleLine.MatchString(line), line)
	assert.True(t, strings.HasSuffix(line, ": GET request for key: key1\n"), line)
	assert.NotContains(t, line, "key=key1")
}

func TestConsoleHandlerAttrsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	lv.Set(slog.LevelDebug)
	logger := slog.New(NewConsoleHandler(&buf, &lv)).With("component", "svc")

	logger.Debug("detail", "slot", 2)
	assert.Contains(t, buf.String(), ": detail component=svc slot=2\n")
}

func TestConsoleHandlerTimestamp(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, nil)
	ts := time.Date(2024, 3, 9, 7, 5, 1, 42_000_000, time.Local)
	r := slog.NewRecord(ts, slog.LevelInfo, "Server ready", 0)
	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t, "2024-03-09 07:05:01.042: Server ready\n", buf.String())
}

func TestConsoleHandlerEnabled(t *testing.T) {
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	h := NewConsoleHandler(&bytes.Buffer{}, &lv)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestForWithCapture(t *testing.T) {
	c := CaptureForTest()
	defer c.Restore()

	logger := For("mycomp")
	logger.Info("component log")
	logger.Info("component log")
	logger.Warn("other")

	assert.True(t, c.Has(slog.LevelInfo, "component log"))
	assert.Equal(t, 2, c.CountMatching(slog.LevelInfo, "component"))
	assert.Equal(t, 1, c.Count(slog.LevelWarn))
	assert.Len(t, c.Records(), 3)
}

func TestCaptureKeepsAttrs(t *testing.T) {
	c := CaptureForTest()
	defer c.Restore()

	For("svc").Info("tagged", "key", "key1")
	slog.Default().With("slot", 2).WithGroup("req").Warn("grouped", "id", "abc")

	assert.True(t, c.HasAttr(slog.LevelInfo, "component", "svc"))
	assert.True(t, c.HasAttr(slog.LevelInfo, "key", "key1"))
	assert.True(t, c.HasAttr(slog.LevelWarn, "slot", "2"))
	assert.True(t, c.HasAttr(slog.LevelWarn, "req.id", "abc"))
	assert.False(t, c.HasAttr(slog.LevelWarn, "key", "key1"))

	For("pool").With("slot", 1).Debug("bound")
	assert.True(t, c.HasAttr(slog.LevelDebug, "slot", "1"))
	assert.True(t, c.HasAttr(slog.LevelDebug, "component", "pool"))
}

func TestCaptureRestore(t *testing.T) {
	prev := slog.Default()
	c := CaptureForTest()
	c.Restore()
	assert.Same(t, prev, slog.Default())
}

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	} {
		lvl, err := ParseLevel(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, lvl, test.ShouldEqual, tc.expected)
	}

	_, err := ParseLevel("chatty")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "chatty")
}

func TestNewFileLogger(t *testing.T) {
	t.Run("stdout only", func(t *testing.T) {
		logger, closer, err := NewFileLogger("bot", FileConfig{})
		test.That(t, err, test.ShouldBeNil)
		logger.Info("hello")
		test.That(t, closer(), test.ShouldBeNil)
	})

	t.Run("bad level", func(t *testing.T) {
		_, _, err := NewFileLogger("bot", FileConfig{Level: "loud"})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("rotated file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hoverbot.log")
		logger, closer, err := NewFileLogger("bot", FileConfig{Level: "info", Path: path, MaxSizeMB: 1})
		test.That(t, err, test.ShouldBeNil)
		logger.Debugw("hidden", "k", 1)
		logger.Infow("command handled", "id", 7)
		test.That(t, closer(), test.ShouldBeNil)

		//nolint:gosec
		contents, err := os.ReadFile(path)
		test.That(t, err, test.ShouldBeNil)
		lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
		test.That(t, lines, test.ShouldHaveLength, 1)
		test.That(t, lines[0], test.ShouldContainSubstring, `"msg":"command handled"`)
		test.That(t, lines[0], test.ShouldContainSubstring, `"id":7`)
		test.That(t, lines[0], test.ShouldContainSubstring, `"logger":"bot"`)
	})
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Named("sensor").Debugw("echo timeout", "pin", "echo")
	test.That(t, logs.FilterMessage("echo timeout").Len(), test.ShouldEqual, 1)
	entry := logs.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "sensor")
	test.That(t, entry.ContextMap()["pin"], test.ShouldEqual, "echo")
}

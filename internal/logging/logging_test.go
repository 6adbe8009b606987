package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := []struct {
		level, format string
		want          zapcore.Level
	}{
		{"", "", zapcore.InfoLevel},
		{"debug", FormatConsole, zapcore.DebugLevel},
		{"warn", FormatJSON, zapcore.WarnLevel},
	}
	for _, tc := range cases {
		logger, err := New(tc.level, tc.format)
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tc.level, tc.format, err)
		}
		if !logger.Core().Enabled(tc.want) || (tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1)) {
			t.Fatalf("New(%q, %q): unexpected level", tc.level, tc.format)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("loud", FormatJSON); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}

package threedsecure

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"chatty":  zapcore.InfoLevel,
	}

	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(level)
			if err != nil {
				t.Fatalf("new logger: %v", err)
			}
			if got := logger.Level(); got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestNonceField(t *testing.T) {
	t.Parallel()

	if f := nonceField("abcdefghijkl"); f.String != "abcdef..." {
		t.Fatalf("expected truncated nonce, got %q", f.String)
	}
	if f := nonceField("abc"); f.String != "abc" {
		t.Fatalf("short nonces are kept, got %q", f.String)
	}
}

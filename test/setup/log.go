package setup

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger returns a logger writing through t. Set TEST_DEBUG=1 for debug output.
func NewTestLogger(t testing.TB) *zap.Logger {
	t.Helper()

	level := zapcore.InfoLevel
	if os.Getenv("TEST_DEBUG") == "1" {
		level = zapcore.DebugLevel
	}
	return zaptest.NewLogger(t, zaptest.Level(level), zaptest.WrapOptions(zap.AddCaller()))
}

package logger

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. Debug switches to the human readable
// development encoder with debug level enabled.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

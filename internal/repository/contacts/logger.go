package contacts

import (
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// zapLogger adapts a zap sugared logger to badger's Logger interface.
type zapLogger struct {
	*zap.SugaredLogger
}

// NewZapLogger routes badger output through zap.
//
//nolint:ireturn // Badger consumes the interface.
func NewZapLogger(l *zap.SugaredLogger) badger.Logger {
	return &zapLogger{l}
}

// Warningf implements badger.Logger.
func (l *zapLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}

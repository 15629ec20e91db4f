package utils

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// Logger returns the package-wide logger. Library code logs through it so
// that it stays silent until an application installs a real logger.
func Logger() *zap.Logger {
	return logger.Load()
}

// SetLogger installs l as the package-wide logger and returns the previous
// one. A nil logger restores the no-op logger.
func SetLogger(l *zap.Logger) (previous *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	return logger.Swap(l)
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := SetLogger(zap.New(core))
	defer SetLogger(prev)

	Logger().Info("hello", zap.Int("rank", 2))
	assert.Equal(t, 1, logs.FilterMessage("hello").Len())

	SetLogger(nil)
	assert.NotNil(t, Logger())
	Logger().Info("dropped")
	assert.Equal(t, 1, logs.Len())
}

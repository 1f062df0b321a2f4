package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestZapWrapper_FieldsAndComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := Component(NewZapAdapter(zap.New(core)), "controller")

	log.With(map[string]interface{}{"sessionId": "s-1"}).Info("turn processed", map[string]interface{}{
		"turn":  2,
		"cause": errors.New("boom"),
	})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "controller", ctx["component"])
		assert.Equal(t, "s-1", ctx["sessionId"])
		assert.EqualValues(t, 2, ctx["turn"])
		assert.Equal(t, "boom", ctx["cause"])
		assert.Equal(t, "turn processed", entries[0].Message)
	}
}

func TestZapWrapper_WithError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithError(errors.New("llm down")).Warn("retrying", nil)
	log.Debug("dropped below level", nil)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "llm down", entries[0].ContextMap()["error"])
	}
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Error("nothing", map[string]interface{}{"k": "v"})
	})
}

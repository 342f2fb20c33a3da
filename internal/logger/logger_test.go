package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"john.doe@example.com": "joh***@example.com",
		"ab@x.io":              "ab***@x.io",
		"not-an-email":         "***",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lg := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	WithContext(ctx, lg).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	}
}

func TestWithContextNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		WithContext(context.Background(), nil).Info("dropped")
	})
}

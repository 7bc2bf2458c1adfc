package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(Config{Level: "warn", Format: "json"}, &buf)

	log.Info("dropped")
	log.WithField("attempt", 3).Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, float64(3), entry["attempt"])
}

func TestNewDefaultsToInfoText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(Config{Level: "nonsense"}, &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestFromContext(t *testing.T) {
	fallback, _ := test.NewNullLogger()
	scoped, _ := test.NewNullLogger()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := ContextWithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))

	assert.NotNil(t, FromContext(context.Background(), nil))
}

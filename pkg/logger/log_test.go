package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDiscardLogger(t *testing.T) {
	c := defaultConfig()
	c.Discard = true
	c.DisableSentry = true
	c.Level = "debug"

	l := c.Build()
	require.NotNil(t, l)
	SetDefault(l)

	assert.Equal(t, "debug", Level())
	Info("✅ 测试日志", FieldTxHash("0xabc"), FieldToken("PEPE"), FieldErr(errors.New("boom")))
}

func TestBuildInvalidLevelPanics(t *testing.T) {
	c := defaultConfig()
	c.Discard = true
	c.DisableSentry = true
	c.Level = "loud"

	assert.Panics(t, func() { c.Build() })
}

func TestLogFromContext(t *testing.T) {
	c := defaultConfig()
	c.Discard = true
	c.DisableSentry = true
	base := c.Build()
	SetDefault(base)

	assert.Same(t, base, LogFromContext(context.Background()))

	child := base.Named("child")
	ctx := ContextWithLog(context.Background(), child)
	assert.Same(t, child, LogFromContext(ctx))
}

func TestFieldCost(t *testing.T) {
	f := FieldCost(1500 * time.Microsecond)
	assert.Equal(t, "cost", f.Key)
	assert.Equal(t, "1.500", f.String)
}

func TestFilename(t *testing.T) {
	c := &Config{Dir: "./logs", Name: "whale"}
	assert.Equal(t, "./logs/whale", c.Filename())
}

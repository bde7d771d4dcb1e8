package log

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	ctx = WithComponent(ctx, "retriever")
	FromCtx(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"retriever"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestNewContextWithWriter(t *testing.T) {
	var buf safeBuffer
	ctx, flush := NewContextWithWriter(context.Background(), true, &buf)

	FromCtx(ctx).Debug().Msg("debug line")
	time.Sleep(20 * time.Millisecond)
	flush()

	assert.True(t, strings.Contains(buf.String(), "debug line"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

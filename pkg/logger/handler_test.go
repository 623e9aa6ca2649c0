package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/pkg/logger"
)

type deviceKey struct{}

func deviceExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(deviceKey{}).(string)
	return logger.DeviceID(id), ok
}

func TestNewContextHandler(t *testing.T) {
	t.Parallel()

	t.Run("no extractors returns next", func(t *testing.T) {
		t.Parallel()
		next := slog.NewTextHandler(&bytes.Buffer{}, nil)
		assert.Same(t, next, logger.NewContextHandler(next, nil))
	})

	t.Run("adds extracted attributes", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(&buf, nil), deviceExtractor))

		ctx := context.WithValue(context.Background(), deviceKey{}, "apple_iphone_ver14")
		log.InfoContext(ctx, "lookup")
		assert.Contains(t, buf.String(), `"device_id":"apple_iphone_ver14"`)
	})

	t.Run("call site wins", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(&buf, nil), deviceExtractor))

		ctx := context.WithValue(context.Background(), deviceKey{}, "from_ctx")
		log.InfoContext(ctx, "lookup", logger.DeviceID("explicit"))
		assert.Contains(t, buf.String(), `"device_id":"explicit"`)
		assert.NotContains(t, buf.String(), "from_ctx")
		assert.Equal(t, 1, strings.Count(buf.String(), "device_id"))
	})

	t.Run("empty attributes skipped", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(&buf, nil), deviceExtractor))

		ctx := context.WithValue(context.Background(), deviceKey{}, "")
		log.InfoContext(ctx, "lookup")
		assert.NotContains(t, buf.String(), "device_id")
	})

	t.Run("survives WithAttrs and WithGroup", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(&buf, nil), deviceExtractor)).
			With(logger.Component("api")).
			WithGroup("req")

		ctx := context.WithValue(context.Background(), deviceKey{}, "generic")
		log.InfoContext(ctx, "lookup")

		out := buf.String()
		require.NotEmpty(t, out)
		assert.Contains(t, out, `"component":"api"`)
		assert.Contains(t, out, `"req":{"device_id":"generic"}`)
	})
}

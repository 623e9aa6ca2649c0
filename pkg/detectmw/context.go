package detectmw

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/devicekit/pkg/detector"
	"github.com/dmitrymomot/devicekit/pkg/logger"
)

type deviceContextKey struct{}

// WithDevice stores dev in ctx. The caller keeps ownership of dev.
func WithDevice(ctx context.Context, dev *detector.Device) context.Context {
	return context.WithValue(ctx, deviceContextKey{}, dev)
}

// FromContext returns the device detected for the request. The device is
// closed when the middleware's handler returns; do not keep it longer.
func FromContext(ctx context.Context) (*detector.Device, bool) {
	if ctx == nil {
		return nil, false
	}
	dev, ok := ctx.Value(deviceContextKey{}).(*detector.Device)
	return dev, ok && dev != nil
}

// LoggerExtractor adds the detected device id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if dev, ok := FromContext(ctx); ok && dev.ID() != "" {
			return logger.DeviceID(dev.ID()), true
		}
		return slog.Attr{}, false
	}
}

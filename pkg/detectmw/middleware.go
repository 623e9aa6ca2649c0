package detectmw

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/devicekit/pkg/detector"
	"github.com/dmitrymomot/devicekit/pkg/logger"
)

// Detector is the part of *detector.Engine the middleware needs.
type Detector interface {
	LookupHeaders(headers map[string]string) (*detector.Device, error)
}

// ErrorHandler writes the response when detection fails. It is not called
// for requests that simply carry no usable header.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures the middleware.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	onError  ErrorHandler
	required bool
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithErrorHandler stops the chain on lookup failures and lets h respond.
// By default the request continues without a device.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}

// WithRequired rejects requests whose device cannot be detected, including
// requests without a usable header. Without an error handler the response
// is 400 Bad Request.
func WithRequired() Option {
	return func(o *options) {
		o.required = true
	}
}

// Middleware detects the calling device from the request headers and stores
// it in the request context. The device is closed after next returns.
func Middleware(d Detector, opts ...Option) func(http.Handler) http.Handler {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dev, err := d.LookupHeaders(detector.HeadersFromHTTP(r.Header))
			if err != nil {
				if !errors.Is(err, detector.ErrNoUsableSignal) {
					o.logger.WarnContext(r.Context(), "device detection failed", logger.Error(err))
				} else if !o.required {
					next.ServeHTTP(w, r)
					return
				}
				if o.onError != nil {
					o.onError(w, r, err)
					return
				}
				if o.required {
					http.Error(w, "device not detected", http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			defer func() { _ = dev.Close() }()

			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), dev)))
		})
	}
}

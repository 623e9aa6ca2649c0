// Package api serves the detector engine over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/devicekit/internal/clientip"
	"github.com/dmitrymomot/devicekit/internal/httpserver"
	"github.com/dmitrymomot/devicekit/internal/requestid"
	"github.com/dmitrymomot/devicekit/pkg/detectmw"
	"github.com/dmitrymomot/devicekit/pkg/detector"
)

// Option configures NewRouter.
type Option func(*routerOptions)

type routerOptions struct {
	trustProxy bool
}

// WithTrustProxy resolves client addresses from forwarding headers.
func WithTrustProxy(trust bool) Option {
	return func(o *routerOptions) { o.trustProxy = trust }
}

type handler struct {
	engine *detector.Engine
	logger *slog.Logger
}

// NewRouter exposes engine over HTTP:
//
//	GET  /healthz               liveness
//	GET  /readyz                ready while a database is loaded
//	GET  /v1/detect             device of the calling client
//	GET  /v1/devices/{id}       device by id
//	GET  /v1/info               loaded database
//	GET  /v1/updater            updater status
//	POST /v1/updater/run        one update run
//	POST /v1/updater/start      start periodic updates
//	POST /v1/updater/stop       stop periodic updates
func NewRouter(engine *detector.Engine, log *slog.Logger, opts ...Option) http.Handler {
	o := &routerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	h := &handler{engine: engine, logger: log}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware(o.trustProxy))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, h.ready))

	r.Route("/v1", func(r chi.Router) {
		r.With(detectmw.Middleware(engine,
			detectmw.WithLogger(log),
			detectmw.WithRequired(),
			detectmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				writeError(w, r, log, err)
			}),
		)).Get("/detect", h.detect)
		r.Get("/devices/{id}", h.device)
		r.Get("/info", h.info)
		r.Route("/updater", func(r chi.Router) {
			r.Get("/", h.updaterStatus)
			r.Post("/run", h.updaterRun)
			r.Post("/start", h.updaterStart)
			r.Post("/stop", h.updaterStop)
		})
	})
	return r
}

func (h *handler) ready(context.Context) error {
	if h.engine.SnapshotID() == "" {
		return detector.ErrEngineClosed
	}
	return nil
}

func (h *handler) detect(w http.ResponseWriter, r *http.Request) {
	dev, ok := detectmw.FromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, detector.ErrNoUsableSignal)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(dev, r))
}

func (h *handler) device(w http.ResponseWriter, r *http.Request) {
	dev, err := h.engine.LookupDeviceIDWithHeaders(chi.URLParam(r, "id"), detector.HeadersFromHTTP(r.Header))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer func() { _ = dev.Close() }()
	writeJSON(w, http.StatusOK, newDeviceResponse(dev, r))
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	info := h.engine.Info()
	if info.APIVersion == "" {
		writeError(w, r, h.logger, detector.ErrEngineClosed)
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{
		APIVersion:   info.APIVersion,
		DataVersion:  info.DataVersion,
		Description:  info.Description,
		LoadedAt:     info.LoadedAt,
		SnapshotID:   h.engine.SnapshotID(),
		Capabilities: len(h.engine.CapabilityNames()),
		Devices:      len(h.engine.DeviceIDs()),
	})
}

func (h *handler) updaterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUpdaterResponse(h.engine.Updater().Status()))
}

func (h *handler) updaterRun(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Updater().RunOnce(r.Context())
	switch {
	case errors.Is(err, detector.ErrAlreadyCurrent):
		writeJSON(w, http.StatusOK, runResponse{Status: "already_current", SnapshotID: h.engine.SnapshotID()})
	case err != nil:
		writeError(w, r, h.logger, err)
	default:
		writeJSON(w, http.StatusOK, runResponse{
			Status:      "updated",
			SnapshotID:  res.SnapshotID,
			DataVersion: res.DataVersion,
			Bytes:       res.Bytes,
			Duration:    res.Duration.String(),
		})
	}
}

func (h *handler) updaterStart(w http.ResponseWriter, r *http.Request) {
	var interval time.Duration
	if s := r.URL.Query().Get("interval"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid interval: " + err.Error()})
			return
		}
		interval = d
	}
	if err := h.engine.Updater().Start(interval); err != nil {
		h.writeStateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUpdaterResponse(h.engine.Updater().Status()))
}

func (h *handler) updaterStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Updater().Stop(); err != nil {
		h.writeStateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUpdaterResponse(h.engine.Updater().Status()))
}

func (h *handler) writeStateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, detector.ErrAlreadyRunning), errors.Is(err, detector.ErrNotRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, detector.ErrInvalidInterval):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeError(w, r, h.logger, err)
	}
}

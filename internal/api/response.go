package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/devicekit/pkg/detector"
	"github.com/dmitrymomot/devicekit/pkg/logger"
)

type deviceResponse struct {
	ID                  string            `json:"id"`
	RootID              string            `json:"root_id,omitempty"`
	IsRoot              bool              `json:"is_root"`
	MatchType           string            `json:"match_type"`
	SnapshotID          string            `json:"snapshot_id"`
	UserAgent           string            `json:"user_agent,omitempty"`
	Capabilities        map[string]string `json:"capabilities"`
	VirtualCapabilities map[string]string `json:"virtual_capabilities"`
}

// newDeviceResponse copies dev. The selection comes from the query:
// ?capabilities=a,b or ?group=name; all capabilities otherwise.
// ?virtual_capabilities=a,b narrows the virtual ones.
func newDeviceResponse(dev *detector.Device, r *http.Request) deviceResponse {
	resp := deviceResponse{
		ID:         dev.ID(),
		RootID:     dev.RootID(),
		IsRoot:     dev.IsRoot(),
		MatchType:  dev.MatchType().String(),
		SnapshotID: dev.SnapshotID(),
		UserAgent:  dev.OriginalUserAgent(),
	}

	q := r.URL.Query()
	if names := q.Get("virtual_capabilities"); names != "" {
		resp.VirtualCapabilities = dev.SelectVirtualCapabilities(splitList(names)...)
	} else {
		resp.VirtualCapabilities = dev.VirtualCapabilities()
	}
	switch {
	case q.Get("capabilities") != "":
		resp.Capabilities = dev.SelectCapabilities(splitList(q.Get("capabilities"))...)
	case q.Get("group") != "":
		resp.Capabilities = dev.CapabilityGroup(q.Get("group"))
	default:
		resp.Capabilities = dev.Capabilities()
	}
	if resp.Capabilities == nil {
		resp.Capabilities = map[string]string{}
	}
	return resp
}

type infoResponse struct {
	APIVersion   string    `json:"api_version"`
	DataVersion  string    `json:"data_version"`
	Description  string    `json:"description,omitempty"`
	LoadedAt     time.Time `json:"loaded_at"`
	SnapshotID   string    `json:"snapshot_id"`
	Capabilities int       `json:"capabilities"`
	Devices      int       `json:"devices"`
}

type updaterResponse struct {
	State       string    `json:"state"`
	Enabled     bool      `json:"enabled"`
	Interval    string    `json:"interval,omitempty"`
	Source      string    `json:"source,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitzero"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	InFlight    bool      `json:"in_flight"`
	SnapshotID  string    `json:"snapshot_id,omitempty"`
}

func newUpdaterResponse(st detector.UpdaterState) updaterResponse {
	resp := updaterResponse{
		State:       st.State.String(),
		Enabled:     st.Enabled,
		Source:      st.Source,
		LastAttempt: st.LastAttempt,
		LastSuccess: st.LastSuccess,
		InFlight:    st.InFlight,
		SnapshotID:  st.SnapshotID,
	}
	if st.Interval > 0 {
		resp.Interval = st.Interval.String()
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	return resp
}

type runResponse struct {
	Status      string `json:"status"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	DataVersion string `json:"data_version,omitempty"`
	Bytes       int64  `json:"bytes,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps detector errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, detector.ErrNoUsableSignal):
		return http.StatusBadRequest
	case errors.Is(err, detector.ErrUnknownDeviceID):
		return http.StatusNotFound
	case errors.Is(err, detector.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, detector.ErrNoSource):
		return http.StatusConflict
	case errors.Is(err, detector.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, detector.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

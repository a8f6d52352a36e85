package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// StoreStatus exposes the health of the reservation store.
type StoreStatus interface {
	Name() string
	Degraded() bool
	Ping(ctx context.Context) error
}

// DebugInfo lists which integrations are configured. It never carries secrets.
type DebugInfo struct {
	HasClientID     bool
	HasClientSecret bool
	RedirectURI     string
	CalendarID      string
	Realtime        bool
}

// SystemHandler serves operational endpoints.
type SystemHandler struct {
	store     StoreStatus
	info      DebugInfo
	responder responder
	logger    *slog.Logger
}

func NewSystemHandler(store StoreStatus, info DebugInfo, logger *slog.Logger) *SystemHandler {
	base := defaultLogger(logger)
	return &SystemHandler{store: store, info: info, responder: newResponder(base), logger: base}
}

func (h *SystemHandler) DebugConfig(w http.ResponseWriter, r *http.Request) {
	resp := debugConfigResponse{
		HasClientID:     h.info.HasClientID,
		HasClientSecret: h.info.HasClientSecret,
		RedirectURI:     h.info.RedirectURI,
		CalendarID:      h.info.CalendarID,
		Realtime:        h.info.Realtime,
	}
	if h.store != nil {
		resp.Store = h.store.Name()
		resp.StoreDegraded = h.store.Degraded()
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		handlerLogger(r.Context(), h.logger, "SystemHandler", "Health").WarnContext(r.Context(), "store ping failed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: h.store.Name(), Error: err.Error()})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok", Store: h.store.Name()})
}

type debugConfigResponse struct {
	HasClientID     bool   `json:"hasClientId"`
	HasClientSecret bool   `json:"hasClientSecret"`
	RedirectURI     string `json:"redirectUri"`
	CalendarID      string `json:"calendarId"`
	Store           string `json:"store"`
	StoreDegraded   bool   `json:"storeDegraded"`
	Realtime        bool   `json:"realtime"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Error  string `json:"error,omitempty"`
}

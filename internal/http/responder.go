package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-reservations/internal/application"
)

var (
	errBadRequestBody       = errors.New("invalid request body")
	errInvalidReservationID = errors.New("invalid reservation id")
)

const msgReservationNotFound = "Reservation not found"

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Error: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Error:   validationSummary(vErr),
			Details: vErr.FieldErrors,
		})
		return
	}

	// Conflicts render as an availability answer.
	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		r.writeJSON(ctx, w, http.StatusOK, availabilityResponse{
			Available: false,
			Conflicts: toReservationDTOs(cErr.Conflicts),
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: msgReservationNotFound})
	case errors.Is(err, application.ErrUnauthenticated), errors.Is(err, application.ErrInvalidState):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "internal error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// validationSummary picks a single human readable message. An ordering
// problem between start and end wins so the common mistake reads naturally.
func validationSummary(vErr *application.ValidationError) string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return "Invalid request"
	}
	if msg, ok := vErr.FieldErrors["endTime"]; ok && strings.Contains(msg, "after") {
		return "End time must be after start time"
	}
	for _, field := range []string{"name", "email", "date", "startTime", "endTime"} {
		if msg, ok := vErr.FieldErrors[field]; ok {
			return msg
		}
	}
	return "Invalid request"
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/feed"
)

type reservationLister interface {
	List(ctx context.Context, date string) ([]application.Reservation, error)
}

// FeedHandler serves reservations as an iCalendar document.
type FeedHandler struct {
	service   reservationLister
	options   feed.Options
	responder responder
	logger    *slog.Logger
}

func NewFeedHandler(service reservationLister, options feed.Options, logger *slog.Logger) *FeedHandler {
	base := defaultLogger(logger)
	return &FeedHandler{service: service, options: options, responder: newResponder(base), logger: base}
}

func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date := r.URL.Query().Get("date")
	reservations, err := h.service.List(r.Context(), date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	entries := make([]feed.Entry, 0, len(reservations))
	for _, res := range reservations {
		entries = append(entries, feed.Entry{
			ID:        res.ID,
			Name:      res.Name,
			Email:     res.Email,
			Date:      res.Date,
			StartTime: res.StartTime,
			EndTime:   res.EndTime,
			Purpose:   res.Purpose,
			CreatedAt: res.CreatedAt,
			UpdatedAt: res.UpdatedAt,
		})
	}

	body, skipped := feed.Render(entries, h.options)
	if skipped > 0 {
		handlerLogger(r.Context(), h.logger, "FeedHandler", "Serve").WarnContext(r.Context(), "reservations skipped in feed", "skipped", skipped)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="reservations.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

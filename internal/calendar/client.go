// Package calendar mirrors reservations into a Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/example/room-reservations/internal/scheduler"
)

const defaultTimeout = 10 * time.Second

// TokenSourcer yields a refreshing token source for a stored token.
// *oauth2.Config satisfies it.
type TokenSourcer interface {
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}

// Booking is the reservation data written to an event.
type Booking struct {
	Name      string
	Email     string
	Date      string
	StartTime string
	EndTime   string
	Purpose   string
}

// Config controls how events are written.
type Config struct {
	CalendarID string
	RoomName   string
	Location   string
	TimeZone   *time.Location
	// Endpoint overrides the API base URL; tests point it at calendartest.
	Endpoint string
	Timeout  time.Duration
}

// Client creates, updates and deletes mirrored events.
type Client struct {
	tokens TokenSourcer
	cfg    Config
	logger *slog.Logger
}

// NewClient returns a Client. Missing config values fall back to the primary
// calendar, UTC and a ten second timeout.
func NewClient(tokens TokenSourcer, cfg Config, logger *slog.Logger) *Client {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{tokens: tokens, cfg: cfg, logger: logger.With("component", "calendar")}
}

// CreateEvent inserts an event for b and returns its id.
func (c *Client) CreateEvent(ctx context.Context, token *oauth2.Token, b Booking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	event, err := c.buildEvent(b)
	if err != nil {
		return "", err
	}
	srv, err := c.service(ctx, token)
	if err != nil {
		return "", err
	}
	created, err := srv.Events.Insert(c.cfg.CalendarID, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	c.logger.Debug("calendar event created", slog.String("event_id", created.Id))
	return created.Id, nil
}

// UpdateEvent replaces the event eventID with the contents of b.
func (c *Client) UpdateEvent(ctx context.Context, token *oauth2.Token, eventID string, b Booking) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	event, err := c.buildEvent(b)
	if err != nil {
		return err
	}
	srv, err := c.service(ctx, token)
	if err != nil {
		return err
	}
	if _, err := srv.Events.Update(c.cfg.CalendarID, eventID, event).SendUpdates("all").Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: update event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes eventID. An event that is already gone counts as deleted.
func (c *Client) DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	srv, err := c.service(ctx, token)
	if err != nil {
		return err
	}
	err = srv.Events.Delete(c.cfg.CalendarID, eventID).SendUpdates("all").Context(ctx).Do()
	if isGone(err) {
		c.logger.Debug("calendar event already deleted", slog.String("event_id", eventID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("calendar: delete event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) service(ctx context.Context, token *oauth2.Token) (*gcal.Service, error) {
	if token == nil {
		return nil, errors.New("calendar: missing token")
	}
	httpClient := oauth2.NewClient(ctx, c.tokens.TokenSource(ctx, token))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return srv, nil
}

func (c *Client) buildEvent(b Booking) (*gcal.Event, error) {
	start, err := scheduler.ParseSlot(b.Date, b.StartTime, c.cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("calendar: event start: %w", err)
	}
	end, err := scheduler.ParseSlot(b.Date, b.EndTime, c.cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("calendar: event end: %w", err)
	}

	description := b.Purpose
	if description == "" {
		description = c.cfg.RoomName + " reservation"
	}
	zone := c.cfg.TimeZone.String()

	return &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", c.cfg.RoomName, b.Name),
		Location:    c.cfg.Location,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: zone},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: zone},
		Attendees: []*gcal.EventAttendee{
			{Email: b.Email, DisplayName: b.Name},
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 30},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}, nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}

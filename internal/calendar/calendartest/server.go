// Package calendartest provides an in-process fake of the Google Calendar v3
// events endpoints used by the calendar package.
package calendartest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"google.golang.org/api/calendar/v3"
)

// Request records one call received by the fake.
type Request struct {
	Method      string
	CalendarID  string
	EventID     string
	SendUpdates string
	Token       string
}

// Server is a fake Calendar API. Point the client at it with option.WithEndpoint(server.URL).
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	events   map[string]map[string]*calendar.Event
	nextID   int
	failures []int
	requests []Request
}

// NewServer starts the fake. Close it when done.
func NewServer() *Server {
	s := &Server{
		events: make(map[string]map[string]*calendar.Event),
		nextID: 1,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailNext makes the next call respond with status.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	s.failures = append(s.failures, status)
	s.mu.Unlock()
}

// Event returns a copy of a stored event.
func (s *Server) Event(calendarID, eventID string) (calendar.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[calendarID][eventID]
	if !ok {
		return calendar.Event{}, false
	}
	return *event, true
}

// EventCount returns the number of events stored for calendarID.
func (s *Server) EventCount(calendarID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[calendarID])
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	idx := strings.Index(r.URL.Path, "/calendars/")
	if idx == -1 {
		http.Error(w, "unsupported endpoint", http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path[idx+len("/calendars/"):], "/"), "/")
	if len(parts) < 2 || parts[1] != "events" {
		http.Error(w, "unsupported resource", http.StatusNotImplemented)
		return
	}

	req := Request{
		Method:      r.Method,
		CalendarID:  parts[0],
		SendUpdates: r.URL.Query().Get("sendUpdates"),
		Token:       strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	}
	if len(parts) == 3 {
		req.EventID = parts[2]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		writeError(w, status, "injected failure")
		return
	}

	switch {
	case req.EventID == "" && r.Method == http.MethodPost:
		s.insertLocked(w, r, req.CalendarID)
	case req.EventID != "" && r.Method == http.MethodGet:
		s.getLocked(w, req.CalendarID, req.EventID)
	case req.EventID != "" && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		s.updateLocked(w, r, req.CalendarID, req.EventID)
	case req.EventID != "" && r.Method == http.MethodDelete:
		s.deleteLocked(w, req.CalendarID, req.EventID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) insertLocked(w http.ResponseWriter, r *http.Request, calendarID string) {
	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	event.Id = fmt.Sprintf("event%d", s.nextID)
	s.nextID++
	event.Status = "confirmed"
	if s.events[calendarID] == nil {
		s.events[calendarID] = make(map[string]*calendar.Event)
	}
	s.events[calendarID][event.Id] = &event
	writeJSON(w, &event)
}

func (s *Server) getLocked(w http.ResponseWriter, calendarID, eventID string) {
	event, ok := s.events[calendarID][eventID]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, event)
}

func (s *Server) updateLocked(w http.ResponseWriter, r *http.Request, calendarID, eventID string) {
	if _, ok := s.events[calendarID][eventID]; !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	event.Id = eventID
	event.Status = "confirmed"
	s.events[calendarID][eventID] = &event
	writeJSON(w, &event)
}

func (s *Server) deleteLocked(w http.ResponseWriter, calendarID, eventID string) {
	if _, ok := s.events[calendarID][eventID]; !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	delete(s.events[calendarID], eventID)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError mimics the Google API error envelope so googleapi.Error carries the code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

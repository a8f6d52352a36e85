package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// DefaultSyncTimeout bounds each external calendar call when no timeout is configured.
const DefaultSyncTimeout = 10 * time.Second

// ReservationRepository captures the persistence interactions needed by the service.
// ListReservations with an empty date returns every reservation.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, date string) ([]Reservation, error)
	SaveReservation(ctx context.Context, reservation Reservation) error
	DeleteReservation(ctx context.Context, id string) error
}

// CalendarSync mirrors reservations into an external calendar.
type CalendarSync interface {
	CreateEvent(ctx context.Context, token *oauth2.Token, reservation Reservation) (string, error)
	UpdateEvent(ctx context.Context, token *oauth2.Token, eventID string, reservation Reservation) error
	DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error
}

// SyncCredentials resolves the credential used for calendar operations.
type SyncCredentials interface {
	ResolveSyncCredential(ctx context.Context, sessionID string) (Credential, bool)
}

// ReservationEvents is notified after a reservation change has been stored.
type ReservationEvents interface {
	ReservationCreated(reservation Reservation)
	ReservationUpdated(reservation Reservation)
	ReservationDeleted(id string)
}

// ReservationService orchestrates validation, availability, persistence,
// calendar mirroring and change notification for reservations.
type ReservationService struct {
	reservations ReservationRepository
	calendar     CalendarSync
	credentials  SyncCredentials
	events       ReservationEvents
	idGenerator  func() string
	now          func() time.Time
	syncTimeout  time.Duration
	locks        *dateLocks
	logger       *slog.Logger
}

// ReservationServiceOption customises a ReservationService.
type ReservationServiceOption func(*ReservationService)

// WithSyncTimeout bounds every external calendar call.
func WithSyncTimeout(timeout time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if timeout > 0 {
			s.syncTimeout = timeout
		}
	}
}

// WithReservationLogger sets the base logger used when the context carries none.
func WithReservationLogger(logger *slog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		s.logger = defaultLogger(logger)
	}
}

// NewReservationService wires dependencies for reservation operations. A nil
// calendar disables external sync; a nil events sink disables notifications.
func NewReservationService(reservations ReservationRepository, calendar CalendarSync, credentials SyncCredentials, events ReservationEvents, idGenerator func() string, now func() time.Time, opts ...ReservationServiceOption) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &ReservationService{
		reservations: reservations,
		calendar:     calendar,
		credentials:  credentials,
		events:       events,
		idGenerator:  idGenerator,
		now:          now,
		syncTimeout:  DefaultSyncTimeout,
		locks:        newDateLocks(),
		logger:       defaultLogger(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// List returns reservations on date, or every reservation when date is empty,
// ordered by date, start time and id.
func (s *ReservationService) List(ctx context.Context, date string) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}

	date = strings.TrimSpace(date)
	if date != "" {
		vErr := &ValidationError{}
		validateDate(vErr, date)
		if vErr.HasErrors() {
			return nil, vErr
		}
	}

	reservations, err := s.reservations.ListReservations(ctx, date)
	if err != nil {
		err = mapRepoError(err)
		s.loggerWith(ctx, "List", "date", date).ErrorContext(ctx, "list reservations failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	sortReservations(reservations)
	return reservations, nil
}

// CheckAvailability reports every reservation overlapping the queried slot.
func (s *ReservationService) CheckAvailability(ctx context.Context, query AvailabilityQuery) (Availability, error) {
	if s == nil {
		return Availability{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return Availability{}, fmt.Errorf("reservation repository not configured")
	}

	query.Date = strings.TrimSpace(query.Date)
	query.StartTime = strings.TrimSpace(query.StartTime)
	query.EndTime = strings.TrimSpace(query.EndTime)
	query.ExcludeID = strings.TrimSpace(query.ExcludeID)

	vErr := &ValidationError{}
	validateSlot(vErr, query.Date, query.StartTime, query.EndTime)
	if vErr.HasErrors() {
		return Availability{}, vErr
	}

	availability, err := s.availability(ctx, query)
	if err != nil {
		s.loggerWith(ctx, "CheckAvailability", "date", query.Date).ErrorContext(ctx, "availability check failed", "error", err, "error_kind", ErrorKind(err))
		return Availability{}, err
	}
	return availability, nil
}

// Create validates and stores a new reservation, then mirrors it into the
// external calendar on a best effort basis and notifies subscribers. The
// availability check and the write run under the date's lock.
func (s *ReservationService) Create(ctx context.Context, params CreateReservationParams) (result CreateReservationResult, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Create", "date", params.Input.Date, "start_time", params.Input.StartTime, "end_time", params.Input.EndTime)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "reservation create failed", err)
			return
		}
		logger.InfoContext(ctx, "reservation created",
			"reservation_id", result.Reservation.ID,
			"calendar_added", result.CalendarAdded,
		)
	}()

	input, duration, vErr := normalizeReservationInput(params.Input)
	if vErr != nil {
		err = vErr
		return
	}

	release := s.locks.lock(input.Date)
	defer release()

	if err = s.ensureAvailable(ctx, input, ""); err != nil {
		return
	}

	reservation := Reservation{
		ID:              s.idGenerator(),
		Name:            input.Name,
		Email:           input.Email,
		Date:            input.Date,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		DurationMinutes: duration,
		Purpose:         input.Purpose,
		CreatedAt:       s.now(),
	}
	if err = s.reservations.SaveReservation(ctx, reservation); err != nil {
		err = mapRepoError(err)
		return
	}

	eventID, added := s.syncCreate(ctx, logger, params.SessionID, reservation)
	if added {
		attached := reservation
		attached.CalendarEventID = eventID
		if saveErr := s.reservations.SaveReservation(ctx, attached); saveErr != nil {
			// Without a stored id the event could never be deleted, so remove it.
			logger.WarnContext(ctx, "calendar event id not recorded",
				"reservation_id", reservation.ID,
				"event_id", eventID,
				"error", saveErr,
			)
			s.syncDelete(ctx, logger, params.SessionID, attached)
			added = false
		} else {
			reservation = attached
		}
	}

	s.publish(ctx, logger, func(events ReservationEvents) { events.ReservationCreated(reservation) })

	result = CreateReservationResult{Reservation: reservation, CalendarAdded: added}
	return
}

// Update replaces the caller editable fields of a reservation. The new slot
// must not overlap any other reservation. The id, creation time and mirrored
// event id are kept and the mirrored event is patched on a best effort basis.
func (s *ReservationService) Update(ctx context.Context, params UpdateReservationParams) (updated Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	id := strings.TrimSpace(params.ReservationID)
	logger := s.loggerWith(ctx, "Update", "reservation_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "reservation update failed", err)
			return
		}
		logger.InfoContext(ctx, "reservation updated", "date", updated.Date)
	}()

	input, duration, vErr := normalizeReservationInput(params.Input)
	if vErr != nil {
		err = vErr
		return
	}

	existing, release, err := s.loadLocked(ctx, id, input.Date)
	if err != nil {
		return
	}
	defer release()

	if err = s.ensureAvailable(ctx, input, existing.ID); err != nil {
		return
	}

	now := s.now()
	updated = existing
	updated.Name = input.Name
	updated.Email = input.Email
	updated.Date = input.Date
	updated.StartTime = input.StartTime
	updated.EndTime = input.EndTime
	updated.DurationMinutes = duration
	updated.Purpose = input.Purpose
	updated.UpdatedAt = &now

	if err = s.reservations.SaveReservation(ctx, updated); err != nil {
		err = mapRepoError(err)
		updated = Reservation{}
		return
	}

	if updated.CalendarEventID != "" {
		s.syncUpdate(ctx, logger, params.SessionID, updated)
	}

	s.publish(ctx, logger, func(events ReservationEvents) { events.ReservationUpdated(updated) })
	return
}

// Delete removes a reservation. The mirrored event is deleted first on a best
// effort basis; a failure there leaves the external event orphaned but still
// removes the local record.
func (s *ReservationService) Delete(ctx context.Context, params DeleteReservationParams) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	id := strings.TrimSpace(params.ReservationID)
	logger := s.loggerWith(ctx, "Delete", "reservation_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "reservation delete failed", err)
			return
		}
		logger.InfoContext(ctx, "reservation deleted")
	}()

	if id == "" {
		return ErrNotFound
	}

	existing, release, err := s.loadLocked(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if existing.CalendarEventID != "" {
		s.syncDelete(ctx, logger, params.SessionID, existing)
	}

	if err = s.reservations.DeleteReservation(ctx, existing.ID); err != nil {
		return mapRepoError(err)
	}

	s.publish(ctx, logger, func(events ReservationEvents) { events.ReservationDeleted(existing.ID) })
	return nil
}

// loadLocked fetches a reservation and locks its date together with extra.
// The record is re-read under the lock so a concurrent move to another date
// is noticed.
func (s *ReservationService) loadLocked(ctx context.Context, id string, extra ...string) (Reservation, func(), error) {
	if id == "" {
		return Reservation{}, nil, ErrNotFound
	}
	for {
		existing, err := s.reservations.GetReservation(ctx, id)
		if err != nil {
			return Reservation{}, nil, mapRepoError(err)
		}

		release := s.locks.lock(append([]string{existing.Date}, extra...)...)
		current, err := s.reservations.GetReservation(ctx, id)
		if err != nil {
			release()
			return Reservation{}, nil, mapRepoError(err)
		}
		if current.Date == existing.Date {
			return current, release, nil
		}
		release()
	}
}

func (s *ReservationService) ensureAvailable(ctx context.Context, input ReservationInput, excludeID string) error {
	availability, err := s.availability(ctx, AvailabilityQuery{
		Date:      input.Date,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		ExcludeID: excludeID,
	})
	if err != nil {
		return err
	}
	if !availability.Available {
		return &ConflictError{Conflicts: availability.Conflicts}
	}
	return nil
}

func (s *ReservationService) availability(ctx context.Context, query AvailabilityQuery) (Availability, error) {
	existing, err := s.reservations.ListReservations(ctx, query.Date)
	if err != nil {
		return Availability{}, mapRepoError(err)
	}
	sortReservations(existing)

	byID := make(map[string]Reservation, len(existing))
	slots := make([]scheduler.Slot, 0, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
		slots = append(slots, scheduler.Slot{ID: r.ID, Date: r.Date, Start: r.StartTime, End: r.EndTime})
	}

	candidate := scheduler.Slot{ID: query.ExcludeID, Date: query.Date, Start: query.StartTime, End: query.EndTime}
	found := scheduler.DetectConflicts(slots, candidate)

	conflicts := make([]Reservation, 0, len(found))
	for _, c := range found {
		conflicts = append(conflicts, byID[c.WithID])
	}
	return Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

func (s *ReservationService) syncCredential(ctx context.Context, logger *slog.Logger, sessionID string) (Credential, bool) {
	if s.calendar == nil || s.credentials == nil {
		return Credential{}, false
	}
	credential, ok := s.credentials.ResolveSyncCredential(ctx, sessionID)
	if !ok || credential.Token == nil {
		logger.InfoContext(ctx, "calendar sync skipped", "reason", "no_credential")
		return Credential{}, false
	}
	return credential, true
}

func (s *ReservationService) syncCreate(ctx context.Context, logger *slog.Logger, sessionID string, reservation Reservation) (string, bool) {
	credential, ok := s.syncCredential(ctx, logger, sessionID)
	if !ok {
		return "", false
	}

	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	eventID, err := s.calendar.CreateEvent(syncCtx, credential.Token, reservation)
	if err != nil {
		logger.WarnContext(ctx, "calendar event create failed",
			"reservation_id", reservation.ID,
			"calendar_owner", credential.Email,
			"error", err,
		)
		return "", false
	}
	return eventID, eventID != ""
}

func (s *ReservationService) syncUpdate(ctx context.Context, logger *slog.Logger, sessionID string, reservation Reservation) {
	credential, ok := s.syncCredential(ctx, logger, sessionID)
	if !ok {
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	if err := s.calendar.UpdateEvent(syncCtx, credential.Token, reservation.CalendarEventID, reservation); err != nil {
		logger.WarnContext(ctx, "calendar event update failed",
			"event_id", reservation.CalendarEventID,
			"calendar_owner", credential.Email,
			"error", err,
		)
	}
}

func (s *ReservationService) syncDelete(ctx context.Context, logger *slog.Logger, sessionID string, reservation Reservation) {
	credential, ok := s.syncCredential(ctx, logger, sessionID)
	if !ok {
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	if err := s.calendar.DeleteEvent(syncCtx, credential.Token, reservation.CalendarEventID); err != nil {
		logger.WarnContext(ctx, "calendar event delete failed",
			"event_id", reservation.CalendarEventID,
			"calendar_owner", credential.Email,
			"error", err,
		)
	}
}

func (s *ReservationService) publish(ctx context.Context, logger *slog.Logger, notify func(ReservationEvents)) {
	if s.events == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "reservation broadcast failed", "panic", fmt.Sprint(r))
		}
	}()
	notify(s.events)
}

func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	switch kind {
	case "validation", "conflict", "not_found":
		logger.WarnContext(ctx, msg, "error", err, "error_kind", kind)
	default:
		logger.ErrorContext(ctx, msg, "error", err, "error_kind", kind)
	}
}

func normalizeReservationInput(input ReservationInput) (ReservationInput, int, *ValidationError) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Date = strings.TrimSpace(input.Date)
	input.StartTime = strings.TrimSpace(input.StartTime)
	input.EndTime = strings.TrimSpace(input.EndTime)
	input.Purpose = strings.TrimSpace(input.Purpose)

	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if !validEmail(input.Email) {
		vErr.add("email", "email must be a valid address")
	}
	duration := validateSlot(vErr, input.Date, input.StartTime, input.EndTime)

	if vErr.HasErrors() {
		return ReservationInput{}, 0, vErr
	}
	return input, duration, nil
}

func validateDate(vErr *ValidationError, date string) {
	if date == "" {
		vErr.add("date", "date is required")
		return
	}
	if err := scheduler.ValidateDate(date); err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
}

// validateSlot records slot problems and returns the duration in minutes when
// the slot is valid.
func validateSlot(vErr *ValidationError, date, start, end string) int {
	validateDate(vErr, date)

	clockOK := true
	for _, field := range []struct{ name, value string }{{"startTime", start}, {"endTime", end}} {
		if field.value == "" {
			vErr.add(field.name, field.name+" is required")
			clockOK = false
			continue
		}
		if _, err := scheduler.ParseClock(field.value); err != nil {
			vErr.add(field.name, field.name+" must be HH:mm")
			clockOK = false
		}
	}
	if !clockOK {
		return 0
	}

	duration, err := scheduler.DurationMinutes(start, end)
	if err != nil {
		vErr.add("endTime", "endTime must be after startTime")
		return 0
	}
	return duration
}

func validEmail(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") || strings.Count(email, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(email, "@")
	return local != "" && domain != ""
}

func sortReservations(reservations []Reservation) {
	slices.SortFunc(reservations, func(a, b Reservation) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sortStrings(values []string) []string {
	slices.Sort(values)
	return values
}

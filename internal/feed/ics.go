// Package feed renders reservations as an iCalendar document.
package feed

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/room-reservations/internal/scheduler"
)

// Entry is one reservation to export.
type Entry struct {
	ID        string
	Name      string
	Email     string
	Date      string
	StartTime string
	EndTime   string
	Purpose   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Options describe the calendar the entries belong to.
type Options struct {
	ProductID string
	RoomName  string
	Location  string
	TimeZone  *time.Location
	// Domain suffixes event UIDs so they are globally unique.
	Domain string
}

// Render returns entries as a VCALENDAR. Entries whose slot cannot be parsed
// are skipped and counted in the second return value.
func Render(entries []Entry, opts Options) (string, int) {
	loc := opts.TimeZone
	if loc == nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(opts.ProductID)
	cal.SetXWRCalName(opts.RoomName)
	cal.SetXWRTimezone(loc.String())

	skipped := 0
	for _, entry := range entries {
		start, err := scheduler.ParseSlot(entry.Date, entry.StartTime, loc)
		if err != nil {
			skipped++
			continue
		}
		end, err := scheduler.ParseSlot(entry.Date, entry.EndTime, loc)
		if err != nil {
			skipped++
			continue
		}

		event := cal.AddEvent(fmt.Sprintf("%s@%s", entry.ID, opts.Domain))
		event.SetCreatedTime(entry.CreatedAt)
		event.SetDtStampTime(entry.CreatedAt)
		if entry.UpdatedAt != nil {
			event.SetModifiedAt(*entry.UpdatedAt)
			event.SetDtStampTime(*entry.UpdatedAt)
		}
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(fmt.Sprintf("%s - %s", opts.RoomName, entry.Name))
		event.SetLocation(opts.Location)
		if entry.Purpose != "" {
			event.SetDescription(entry.Purpose)
		}
		event.AddAttendee("mailto:"+entry.Email, ics.WithCN(entry.Name))
	}
	return cal.Serialize(), skipped
}

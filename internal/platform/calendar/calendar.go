// Package calendar builds the iCalendar reminder handed to the user after a
// summary is composed.
package calendar

import (
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const (
	ProductID   = "-//UPO//Admissao//PT"
	Title       = "Revisar Paciente (UPO)"
	FileName    = "lembrete_upo.ics"
	ContentType = "text/calendar; charset=utf-8"
	UIDDomain   = "upo.app"

	// EventDuration is the fixed length of the reminder event.
	EventDuration = 30 * time.Minute

	// MaxOffsetMinutes bounds how far ahead a reminder may be placed (one year).
	MaxOffsetMinutes = 365 * 24 * 60
)

var ErrInvalidOffset = errors.New("reminder offset must be between 1 minute and one year")

// Reminder is a single review event placed some minutes in the future.
type Reminder struct {
	UID         string
	Stamp       time.Time
	Start       time.Time
	End         time.Time
	Description string
}

// NewReminder schedules a reminder minutes after now carrying payload in its
// description.
func NewReminder(now time.Time, minutes int, payload string) (*Reminder, error) {
	if minutes <= 0 || minutes > MaxOffsetMinutes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, minutes)
	}
	start := now.Add(time.Duration(minutes) * time.Minute)
	return &Reminder{
		UID:         uuid.New().String() + "@" + UIDDomain,
		Stamp:       now,
		Start:       start,
		End:         start.Add(EventDuration),
		Description: "Lembrete de revisão.\n\n" + payload,
	}, nil
}

// ICS serializes the reminder as a VCALENDAR with a single VEVENT. Newlines
// in the description are escaped as the format requires.
func (r *Reminder) ICS() string {
	cal := ics.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ics.MethodPublish)

	ev := cal.AddEvent(r.UID)
	ev.SetDtStampTime(r.Stamp.UTC())
	ev.SetStartAt(r.Start.UTC())
	ev.SetEndAt(r.End.UTC())
	ev.SetSummary(Title)
	ev.SetDescription(r.Description)
	return cal.Serialize()
}

package models

import "time"

// CalendarEvent is one event as returned by the calendar service.
type CalendarEvent struct {
	ID       string
	Title    string
	Start    time.Time
	AllDay   bool
	HTMLLink string
}

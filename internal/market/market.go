// Package market decides when the exchange is open so collection only runs
// during trading sessions.
package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// Calendar reports whether a date is a trading day.
type Calendar interface {
	IsBusinessDay(t time.Time) bool
}

// NSE is a weekday calendar with an explicit holiday list in YYYY-MM-DD form.
type NSE struct {
	holidays map[string]struct{}
	loc      *time.Location
}

func NewNSE(holidays []string, loc *time.Location) *NSE {
	h := make(map[string]struct{}, len(holidays))
	for _, d := range holidays {
		h[strings.TrimSpace(d)] = struct{}{}
	}
	return &NSE{holidays: h, loc: loc}
}

func (n *NSE) IsBusinessDay(t time.Time) bool {
	t = t.In(n.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := n.holidays[t.Format("2006-01-02")]
	return !holiday
}

// NewCalendar returns the calendar for an exchange code.
func NewCalendar(code string, holidays []string, loc *time.Location) (Calendar, error) {
	switch strings.ToUpper(code) {
	case "XNSE", "NSE", "":
		return NewNSE(holidays, loc), nil
	case "XNYS", "NYSE":
		return calendar.XNYS(), nil
	default:
		return nil, fmt.Errorf("unsupported market calendar %q", code)
	}
}

// Session is the daily trading window of an exchange.
type Session struct {
	Calendar Calendar
	Location *time.Location
	open     time.Duration
	close    time.Duration
}

// NewSession parses open and close as HH:MM in loc.
func NewSession(cal Calendar, loc *time.Location, open, close string) (*Session, error) {
	o, err := clock(open)
	if err != nil {
		return nil, fmt.Errorf("parsing open time: %w", err)
	}
	c, err := clock(close)
	if err != nil {
		return nil, fmt.Errorf("parsing close time: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("close %s must be after open %s", close, open)
	}
	return &Session{Calendar: cal, Location: loc, open: o, close: c}, nil
}

func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsOpen reports whether t falls on a business day between open and close,
// inclusive of the closing minute.
func (s *Session) IsOpen(t time.Time) bool {
	t = t.In(s.Location)
	if !s.Calendar.IsBusinessDay(t) {
		return false
	}
	since := t.Sub(midnight(t))
	return since >= s.open && since <= s.close
}

// AfterClose reports whether t is on a business day past the closing minute.
func (s *Session) AfterClose(t time.Time) bool {
	t = t.In(s.Location)
	if !s.Calendar.IsBusinessDay(t) {
		return false
	}
	return t.Sub(midnight(t)) > s.close
}

// Today returns the date of t in the session timezone.
func (s *Session) Today(t time.Time) string {
	return t.In(s.Location).Format("2006-01-02")
}

// Slot truncates t to the start of its collection interval, counted from the
// session open.
func (s *Session) Slot(t time.Time, interval time.Duration) time.Time {
	t = t.In(s.Location)
	if interval <= 0 {
		return t.Truncate(time.Minute)
	}
	start := midnight(t).Add(s.open)
	if t.Before(start) {
		return t.Truncate(time.Minute)
	}
	return start.Add(t.Sub(start) / interval * interval)
}

// LoadLocation falls back to UTC for an unknown zone name.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

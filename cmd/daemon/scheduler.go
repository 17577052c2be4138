package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/maxpain-dashboard/internal/market"
)

const slotLayout = "2006-01-02 15:04"

// Scheduler decides when a collection slot is due.
type Scheduler struct {
	session  *market.Session
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(session *market.Session, interval time.Duration) *Scheduler {
	return &Scheduler{session: session, interval: interval, now: time.Now}
}

// CurrentSlot returns the slot label for now and whether the session is open.
func (s *Scheduler) CurrentSlot() (string, bool) {
	now := s.now()
	if !s.session.IsOpen(now) {
		return "", false
	}
	return s.session.Slot(now, s.interval).Format(slotLayout), true
}

// TodayDate returns today's date in the session timezone.
func (s *Scheduler) TodayDate() string {
	return s.session.Today(s.now())
}

// AfterClose reports whether today is a business day whose session has ended.
func (s *Scheduler) AfterClose() bool {
	return s.session.AfterClose(s.now())
}

// Location returns the scheduler's timezone location
func (s *Scheduler) Location() *time.Location {
	return s.session.Location
}

// Tracker persists the last value written so a restart does not repeat work.
type Tracker struct {
	stateFile string
}

func NewTracker(stateFile string) *Tracker {
	return &Tracker{stateFile: stateFile}
}

// Last reads the last recorded value from the state file
func (t *Tracker) Last() string {
	data, err := os.ReadFile(t.stateFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Set writes value to the state file
func (t *Tracker) Set(value string) error {
	dir := filepath.Dir(t.stateFile)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	return os.WriteFile(t.stateFile, []byte(value+"\n"), 0600)
}

// Done checks if value was already recorded
func (t *Tracker) Done(value string) bool {
	return t.Last() == value
}

// Package markethours answers whether an exchange session is open.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session is a weekday trading session with a fixed daily open and close
// in one location, minus holidays.
type Session struct {
	Location *time.Location
	Open     time.Duration // offset from local midnight
	Close    time.Duration

	holidays map[string]bool
}

// NSE returns the NSE cash session (9:15 to 15:30 IST) with the built-in
// holiday list.
func NSE() *Session {
	s := &Session{
		Location: IST,
		Open:     9*time.Hour + 15*time.Minute,
		Close:    15*time.Hour + 30*time.Minute,
		holidays: make(map[string]bool, len(nseHolidays)),
	}
	for _, d := range nseHolidays {
		s.holidays[d] = true
	}
	return s
}

// AddHolidays marks extra closed dates, formatted 2006-01-02.
func (s *Session) AddHolidays(dates ...string) error {
	if s.holidays == nil {
		s.holidays = make(map[string]bool)
	}
	for _, d := range dates {
		if _, err := time.ParseInLocation(time.DateOnly, d, s.Location); err != nil {
			return fmt.Errorf("holiday %q: %w", d, err)
		}
		s.holidays[d] = true
	}
	return nil
}

// IsHoliday reports whether t falls on a listed holiday.
func (s *Session) IsHoliday(t time.Time) bool {
	return s.holidays[t.In(s.Location).Format(time.DateOnly)]
}

// IsTradingDay reports whether t is a weekday and not a holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	local := t.In(s.Location)
	wd := local.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !s.IsHoliday(local)
}

// IsOpen reports whether t falls within the session.
func (s *Session) IsOpen(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	since := t.In(s.Location).Sub(s.midnight(t))
	return since >= s.Open && since < s.Close
}

// OpenOn returns the session open on t's local day.
func (s *Session) OpenOn(t time.Time) time.Time {
	return s.midnight(t).Add(s.Open)
}

// NextOpen returns the next session open at or after t. Inside a session
// it returns the next day's open.
func (s *Session) NextOpen(t time.Time) time.Time {
	day := s.midnight(t)
	if open := day.Add(s.Open); !t.After(open) && s.IsTradingDay(day) {
		return open
	}
	// Two weeks covers any run of weekends and holidays.
	for i := 1; i <= 14; i++ {
		d := day.AddDate(0, 0, i)
		if s.IsTradingDay(d) {
			return d.Add(s.Open)
		}
	}
	return day.AddDate(0, 0, 1).Add(s.Open)
}

// Status is a human-readable session state, e.g. "open, closes in 2h5m".
func (s *Session) Status(t time.Time) string {
	if s.IsOpen(t) {
		return "open, closes in " + fmtDur(s.midnight(t).Add(s.Close).Sub(t))
	}
	next := s.NextOpen(t)
	local := next.In(s.Location)
	return fmt.Sprintf("closed, opens %s %s (%s)",
		local.Weekday().String()[:3], local.Format("15:04"), fmtDur(next.Sub(t)))
}

func (s *Session) midnight(t time.Time) time.Time {
	local := t.In(s.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

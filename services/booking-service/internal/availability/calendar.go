package availability

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Hours is the ordered list of slot start times ("15:04") that make up a working day.
type Hours []string

// NewHours builds slot starts from first to last inclusive in step increments.
func NewHours(first, last string, step time.Duration) (Hours, error) {
	start, err := time.Parse(TimeLayout, first)
	if err != nil {
		return nil, fmt.Errorf("invalid workday start %q", first)
	}
	end, err := time.Parse(TimeLayout, last)
	if err != nil {
		return nil, fmt.Errorf("invalid workday end %q", last)
	}
	if step <= 0 || step%time.Minute != 0 {
		return nil, fmt.Errorf("slot step must be a positive whole number of minutes (got %s)", step)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("workday end %s is before start %s", last, first)
	}

	var hours Hours
	for t := start; !t.After(end); t = t.Add(step) {
		hours = append(hours, t.Format(TimeLayout))
	}
	return hours, nil
}

// DefaultHours is 08:00 through 17:00 in one hour steps.
func DefaultHours() Hours {
	h, _ := NewHours("08:00", "17:00", time.Hour)
	return h
}

func (h Hours) Contains(t string) bool {
	return slices.Contains(h, t)
}

// Calendar yields every (date, time) in [start, end] crossed with hours, dates ascending.
// Each range over the sequence recomputes it from scratch.
func Calendar(start, end time.Time, hours Hours) iter.Seq[model.Slot] {
	start, end = truncateDay(start), truncateDay(end)
	return func(yield func(model.Slot) bool) {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			date := d.Format(DateLayout)
			for _, t := range hours {
				if !yield(model.Slot{Date: date, Time: t}) {
					return
				}
			}
		}
	}
}

// ParseDate parses a "2006-01-02" calendar date as midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ValidTime reports whether s is a "15:04" time of day.
func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil && len(s) == len(TimeLayout)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

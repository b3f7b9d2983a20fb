package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// BusinessHours bounds the bookable window of a business day, in whole hours
// of the business timezone.
type BusinessHours struct {
	OpenHour  int
	CloseHour int
}

func (h BusinessHours) Validate() error {
	if h.OpenHour < 0 || h.OpenHour > 23 {
		return errors.New("invalid open hour")
	}
	if h.CloseHour < 1 || h.CloseHour > 24 {
		return errors.New("invalid close hour")
	}
	if h.CloseHour <= h.OpenHour {
		return errors.New("close hour must be after open hour")
	}
	return nil
}

// ParseDate reads a YYYY-MM-DD calendar date and returns local midnight of
// that day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errors.New("invalid date")
	}
	return d, nil
}

// DayBounds returns the half-open UTC range [start, end) covering the
// business day that contains day.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// GenerateSlots returns every candidate start on the business day of day,
// spaced durationMinutes apart from opening, such that each slot ends no later
// than closing. A trailing remainder shorter than the duration is dropped, as
// are wall times that do not exist on a DST transition day.
func GenerateSlots(day time.Time, loc *time.Location, hours BusinessHours, durationMinutes int) ([]time.Time, error) {
	if durationMinutes <= 0 {
		return nil, errors.New("invalid duration")
	}
	if err := hours.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	local := day.In(loc)
	y, m, d := local.Date()

	open := hours.OpenHour * 60
	closing := hours.CloseHour * 60

	out := make([]time.Time, 0, (closing-open)/durationMinutes)
	for minute := open; minute+durationMinutes <= closing; minute += durationMinutes {
		slot := time.Date(y, m, d, 0, minute, 0, 0, loc)
		// Wall times skipped by a DST jump get normalized to another hour.
		if slot.Hour() != minute/60 || slot.Minute() != minute%60 {
			continue
		}
		out = append(out, slot.UTC())
	}
	return out, nil
}

// NormalizeStart puts a slot start in the single precision every layer keys
// on: UTC, whole seconds.
func NormalizeStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// SlotSet holds slot starts keyed by unix seconds for constant-time lookups.
type SlotSet map[int64]struct{}

func NewSlotSet(starts ...time.Time) SlotSet {
	s := make(SlotSet, len(starts))
	for _, t := range starts {
		s.Add(t)
	}
	return s
}

func (s SlotSet) Add(t time.Time) {
	s[t.UTC().Unix()] = struct{}{}
}

func (s SlotSet) Has(t time.Time) bool {
	_, ok := s[t.UTC().Unix()]
	return ok
}

// Sorted returns the members in ascending order, as UTC times.
func (s SlotSet) Sorted() []time.Time {
	out := make([]time.Time, 0, len(s))
	for sec := range s {
		out = append(out, time.Unix(sec, 0).UTC())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// FreeSlots filters candidates down to those not in busy and not starting
// before notBefore. A zero notBefore keeps past slots.
func FreeSlots(candidates []time.Time, busy SlotSet, notBefore time.Time) []time.Time {
	out := make([]time.Time, 0, len(candidates))
	for _, c := range candidates {
		if !notBefore.IsZero() && c.Before(notBefore) {
			continue
		}
		if busy.Has(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

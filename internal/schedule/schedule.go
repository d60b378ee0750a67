// Package schedule is the weekly heating calendar: per weekday, a sorted list
// of non-overlapping COMFORT ranges.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the value of "24:00", legal only as an entry end.
const MinutesPerDay = 24 * 60

// ErrInvalid is returned for any schedule that fails validation.
var ErrInvalid = errors.New("invalid schedule")

// Weekdays lists the seven keys of a Weekly, Monday first.
var Weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// TimeOfDay is a number of minutes since midnight, in [0, MinutesPerDay].
type TimeOfDay int

// ParseTime parses H:MM or HH:MM. "24:00" is accepted only when allowEnd is set.
func ParseTime(s string, allowEnd bool) (TimeOfDay, error) {
	if s == "24:00" {
		if allowEnd {
			return MinutesPerDay, nil
		}
		return 0, fmt.Errorf("%w: 24:00 is only allowed as an end time", ErrInvalid)
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalid, s)
	}
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: time %q must be between 00:00 and 23:59", ErrInvalid, s)
	}
	return TimeOfDay(hour*60 + minute), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String formats as HH:MM; MinutesPerDay is "24:00".
func (t TimeOfDay) String() string {
	if t == MinutesPerDay {
		return "24:00"
	}
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// At anchors t to the wall clock of ref's day, in ref's location.
// MinutesPerDay maps to midnight of the following day.
func (t TimeOfDay) At(ref time.Time) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, 0, int(t), 0, 0, ref.Location())
}

// Entry is one COMFORT range. End is exclusive.
type Entry struct {
	Start TimeOfDay
	End   TimeOfDay
}

type entryJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON encodes {"start":"HH:MM","end":"HH:MM"}.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{Start: e.Start.String(), End: e.End.String()})
}

// Weekly maps weekday name to its entries.
type Weekly map[string][]Entry

// Empty returns a Weekly with every weekday present and no entries.
func Empty() Weekly {
	w := make(Weekly, len(Weekdays))
	for _, d := range Weekdays {
		w[d] = []Entry{}
	}
	return w
}

// DayName returns the Weekly key for d.
func DayName(d time.Weekday) string {
	// time.Weekday starts on Sunday.
	return Weekdays[(int(d)+6)%7]
}

// Day returns the entries of d.
func (w Weekly) Day(d time.Weekday) []Entry {
	return w[DayName(d)]
}

// MarshalJSON always emits the seven weekday keys.
func (w Weekly) MarshalJSON() ([]byte, error) {
	out := make(map[string][]Entry, len(Weekdays))
	for _, d := range Weekdays {
		entries := w[d]
		if entries == nil {
			entries = []Entry{}
		}
		out[d] = entries
	}
	return json.Marshal(out)
}

// Normalize returns a copy of w with all seven days, each sorted by start.
// It rejects entries outside the day, start >= end and overlapping entries.
// Keys other than the seven weekdays are dropped.
func Normalize(w Weekly) (Weekly, error) {
	out := Empty()
	for _, d := range Weekdays {
		entries := append([]Entry(nil), w[d]...)
		for _, e := range entries {
			if e.Start < 0 || e.Start >= MinutesPerDay || e.End <= 0 || e.End > MinutesPerDay {
				return nil, fmt.Errorf("%w: %s: entry %s-%s out of range", ErrInvalid, d, e.Start, e.End)
			}
			if e.Start >= e.End {
				return nil, fmt.Errorf("%w: %s: end %s must be after start %s", ErrInvalid, d, e.End, e.Start)
			}
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Start < entries[j].Start })
		for i := 1; i < len(entries); i++ {
			if entries[i].Start < entries[i-1].End {
				return nil, fmt.Errorf("%w: %s: entries %s-%s and %s-%s overlap", ErrInvalid, d,
					entries[i-1].Start, entries[i-1].End, entries[i].Start, entries[i].End)
			}
		}
		out[d] = entries
	}
	return out, nil
}

// Parse decodes and normalizes a JSON object of weekday → [{start,end}].
// Missing, null or "" days are empty; unknown keys are ignored.
func Parse(data []byte) (Weekly, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: schedule must be a JSON object", ErrInvalid)
	}

	w := Empty()
	for _, d := range Weekdays {
		entries, err := parseDay(d, raw[d])
		if err != nil {
			return nil, err
		}
		w[d] = entries
	}
	return Normalize(w)
}

func parseDay(day string, data json.RawMessage) ([]Entry, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return []Entry{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s must be a list of entries", ErrInvalid, day)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, fmt.Errorf("%w: %s: each entry must be an object", ErrInvalid, day)
		}
		var start, end string
		if json.Unmarshal(fields["start"], &start) != nil || json.Unmarshal(fields["end"], &end) != nil {
			return nil, fmt.Errorf("%w: %s: start and end must be HH:MM strings", ErrInvalid, day)
		}
		s, err := ParseTime(start, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", day, err)
		}
		e, err := ParseTime(end, true)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", day, err)
		}
		entries = append(entries, Entry{Start: s, End: e})
	}
	return entries, nil
}

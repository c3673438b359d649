// Package window assigns session records to reporting days. A reporting day
// for date D runs from 21:01:00 on D-1 through 21:00:00 on D, local time.
package window

import (
	"sort"
	"time"

	"github.com/user/sessionlog/internal/types"
)

const (
	CutoffHour = 21
	DateLayout = "2006-01-02"
)

// Window is the inclusive time range that belongs to Target's daily note.
type Window struct {
	Start  time.Time
	End    time.Time
	Target time.Time
}

// For returns the window ending at the cutoff on target's calendar date, in
// target's location.
func For(target time.Time) Window {
	loc := target.Location()
	y, m, d := target.Date()
	end := time.Date(y, m, d, CutoffHour, 0, 0, 0, loc)
	prev := time.Date(y, m, d-1, CutoffHour, 1, 0, 0, loc)
	return Window{Start: prev, End: end, Target: time.Date(y, m, d, 12, 0, 0, 0, loc)}
}

// Current returns the window the default run should process at now: today's
// window once the cutoff hour has been reached, yesterday's before that.
func Current(now time.Time) Window {
	if now.Hour() >= CutoffHour {
		return For(now)
	}
	y, m, d := now.Date()
	return For(time.Date(y, m, d-1, 12, 0, 0, 0, now.Location()))
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Key returns the target date as YYYY-MM-DD.
func (w Window) Key() string {
	return w.Target.Format(DateLayout)
}

// Select returns the records that ended inside w, oldest first.
func Select(records []*types.SessionRecord, w Window) []*types.SessionRecord {
	var out []*types.SessionRecord
	for _, r := range records {
		if w.Contains(r.EndedAt) {
			out = append(out, r)
		}
	}
	sortByEnd(out)
	return out
}

// GroupByCalendarDate buckets records by the local calendar date of EndedAt.
// Unlike Select this ignores the cutoff, so a record ending at 22:00 lands on
// its own date rather than the next reporting day.
func GroupByCalendarDate(records []*types.SessionRecord, loc *time.Location) map[string][]*types.SessionRecord {
	groups := make(map[string][]*types.SessionRecord)
	for _, r := range records {
		key := r.EndedAt.In(loc).Format(DateLayout)
		groups[key] = append(groups[key], r)
	}
	for _, g := range groups {
		sortByEnd(g)
	}
	return groups
}

// SortedKeys returns the keys of groups in ascending date order.
func SortedKeys(groups map[string][]*types.SessionRecord) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Day is one unit of batch work: a target date and its records.
type Day struct {
	Key     string
	Date    time.Time
	Records []*types.SessionRecord
}

// DayFromKey parses a YYYY-MM-DD key to noon of that date in loc.
func DayFromKey(key string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, err
	}
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 12, 0, 0, 0, loc), nil
}

func sortByEnd(records []*types.SessionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EndedAt.Before(records[j].EndedAt)
	})
}

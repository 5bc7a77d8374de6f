// Package notify computes and applies the schedule of "photo memories"
// reminders.
package notify

import (
	"sort"
	"time"

	"github.com/cwarden/memories/internal/parser"
)

const (
	// MaxScheduled is the most reminders kept scheduled at once.
	MaxScheduled = 64
	// Sound is the sound attached to every reminder.
	Sound = "notification.mp3"
)

// Clock is the preferred time of day reminders fire at.
type Clock = parser.Clock

// DayKey is a calendar day independent of year.
type DayKey struct {
	Month time.Month
	Day   int
}

// KeyOf returns the day key of t in t's location.
func KeyOf(t time.Time) DayKey {
	return DayKey{Month: t.Month(), Day: t.Day()}
}

// Code orders keys within a year as month*100+day.
func (k DayKey) Code() int {
	return int(k.Month)*100 + k.Day
}

func (k DayKey) valid() bool {
	return k.Month >= time.January && k.Month <= time.December && k.Day >= 1 && k.Day <= 31
}

// CountByDay aggregates creation dates into per-day counts.
func CountByDay(dates []time.Time) map[DayKey]int {
	counts := make(map[DayKey]int)
	for _, d := range dates {
		counts[KeyOf(d)]++
	}
	return counts
}

// Entry is one reminder to schedule.
type Entry struct {
	FireDate time.Time
	Key      DayKey
	Count    int
	Title    string
	Body     string
	Sound    string
}

// Plan computes the reminders for counts. Each day fires in now's year at
// the time given by at, or next year when the day has already passed.
// Only the MaxScheduled earliest reminders are returned. A nil f formats in
// English.
func Plan(counts map[DayKey]int, at Clock, now time.Time, f *Formatter) []Entry {
	if f == nil {
		f = defaultFormatter
	}

	today := KeyOf(now).Code()
	loc := now.Location()

	var entries []Entry
	for key, count := range counts {
		if count <= 0 || !key.valid() {
			continue
		}

		year := now.Year()
		if key.Code() < today {
			year++
		}

		// time.Date normalizes days the target year lacks (Feb 29 becomes Mar 1)
		fire := time.Date(year, key.Month, key.Day, at.Hour, at.Minute, 0, 0, loc)
		entries = append(entries, Entry{
			FireDate: fire,
			Key:      key,
			Count:    count,
			Title:    f.Title(count),
			Body:     f.Body(count),
			Sound:    Sound,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FireDate.Equal(entries[j].FireDate) {
			return entries[i].Key.Code() < entries[j].Key.Code()
		}
		return entries[i].FireDate.Before(entries[j].FireDate)
	})

	if len(entries) > MaxScheduled {
		entries = entries[:MaxScheduled]
	}
	return entries
}

// DebugOverride replaces entries with the first one re-timed to fire 20
// seconds after now, for trying reminders out.
func DebugOverride(entries []Entry, now time.Time) []Entry {
	if len(entries) == 0 {
		return entries
	}
	first := entries[0]
	first.FireDate = now.Add(20 * time.Second)
	return []Entry{first}
}

package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

type TimeParser struct {
	now      time.Time
	location *time.Location
}

func NewTimeParser() *TimeParser {
	return &TimeParser{
		now:      time.Now(),
		location: time.Local,
	}
}

func (p *TimeParser) SetNow(now time.Time) {
	p.now = now
	p.location = now.Location()
}

var (
	clockRe     = regexp.MustCompile(`^(\d{1,2})(?::?(\d{2}))?\s*(am|pm)?$`)
	shortDateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})(?:[/-](\d{4}))?$`)
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	monthNameRe = regexp.MustCompile(`^(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|september|oct|october|nov|november|dec|december)\s+(\d{1,2})(?:,?\s+(\d{4}))?$`)
)

// ParseClock accepts "9am", "9:30pm", "21:30", "2130", "noon" and friends.
func (p *TimeParser) ParseClock(input string) (Clock, error) {
	lower := strings.ToLower(strings.TrimSpace(input))
	lower = strings.TrimPrefix(lower, "at ")
	if lower == "" {
		return Clock{}, fmt.Errorf("empty time")
	}

	namedTimes := map[string]int{
		"noon":      12,
		"midnight":  0,
		"morning":   9,
		"afternoon": 14,
		"evening":   18,
		"night":     21,
	}
	if hour, ok := namedTimes[lower]; ok {
		return Clock{Hour: hour}, nil
	}

	matches := clockRe.FindStringSubmatch(lower)
	if matches == nil {
		return Clock{}, fmt.Errorf("unrecognised time: %q", input)
	}

	hour, _ := strconv.Atoi(matches[1])
	min := 0
	if matches[2] != "" {
		min, _ = strconv.Atoi(matches[2])
	}

	switch matches[3] {
	case "pm":
		if hour > 12 {
			return Clock{}, fmt.Errorf("invalid hour for pm: %d", hour)
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return Clock{}, fmt.Errorf("invalid hour for am: %d", hour)
		}
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || min > 59 {
		return Clock{}, fmt.Errorf("time out of range: %q", input)
	}
	return Clock{Hour: hour, Minute: min}, nil
}

// ParseDay resolves a day description to midnight of that day.
func (p *TimeParser) ParseDay(input string) (time.Time, error) {
	lower := strings.ToLower(strings.TrimSpace(input))
	switch lower {
	case "", "today":
		return p.today(), nil
	case "tomorrow", "tmrw":
		return p.today().AddDate(0, 0, 1), nil
	case "yesterday":
		return p.today().AddDate(0, 0, -1), nil
	}

	if matches := isoDateRe.FindStringSubmatch(lower); matches != nil {
		year, _ := strconv.Atoi(matches[1])
		month, _ := strconv.Atoi(matches[2])
		day, _ := strconv.Atoi(matches[3])
		return p.date(year, time.Month(month), day)
	}

	// MM/DD or MM/DD/YYYY
	if matches := shortDateRe.FindStringSubmatch(lower); matches != nil {
		month, _ := strconv.Atoi(matches[1])
		day, _ := strconv.Atoi(matches[2])
		year := p.now.Year()
		if matches[3] != "" {
			year, _ = strconv.Atoi(matches[3])
		}
		return p.date(year, time.Month(month), day)
	}

	if matches := monthNameRe.FindStringSubmatch(lower); matches != nil {
		day, _ := strconv.Atoi(matches[2])
		year := p.now.Year()
		if matches[3] != "" {
			year, _ = strconv.Atoi(matches[3])
		}
		return p.date(year, p.parseMonth(matches[1]), day)
	}

	return time.Time{}, fmt.Errorf("unrecognised day: %q", input)
}

// ParseMoment parses "DAY [TIME]", e.g. "jun 15 2024 9am" or "2024-06-15 21:30".
// The time defaults to midnight.
func (p *TimeParser) ParseMoment(input string) (time.Time, error) {
	fields := strings.Fields(input)
	for split := len(fields); split > 0; split-- {
		day, err := p.ParseDay(strings.Join(fields[:split], " "))
		if err != nil {
			continue
		}
		if split == len(fields) {
			return day, nil
		}
		clock, err := p.ParseClock(strings.Join(fields[split:], " "))
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour, clock.Minute, 0, 0, p.location), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised moment: %q", input)
}

func (p *TimeParser) date(year int, month time.Month, day int) (time.Time, error) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date out of range: %d-%02d-%02d", year, month, day)
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, p.location)
	if t.Month() != month {
		return time.Time{}, fmt.Errorf("no such day: %d-%02d-%02d", year, month, day)
	}
	return t, nil
}

func (p *TimeParser) parseMonth(s string) time.Month {
	switch s {
	case "jan", "january":
		return time.January
	case "feb", "february":
		return time.February
	case "mar", "march":
		return time.March
	case "apr", "april":
		return time.April
	case "may":
		return time.May
	case "jun", "june":
		return time.June
	case "jul", "july":
		return time.July
	case "aug", "august":
		return time.August
	case "sep", "september":
		return time.September
	case "oct", "october":
		return time.October
	case "nov", "november":
		return time.November
	case "dec", "december":
		return time.December
	default:
		return time.January
	}
}

func (p *TimeParser) today() time.Time {
	y, m, d := p.now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.location)
}

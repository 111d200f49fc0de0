package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// dayLetters maps the single-letter day codes to Go weekdays.
// R is Thursday, S is Saturday, U is Sunday.
var dayLetters = map[string]time.Weekday{
	"M": time.Monday,
	"T": time.Tuesday,
	"W": time.Wednesday,
	"R": time.Thursday,
	"F": time.Friday,
	"S": time.Saturday,
	"U": time.Sunday,
}

// TimeOfDay is a second-resolution offset into a day.
type TimeOfDay int

const endOfDay = TimeOfDay(23*3600 + 59*60 + 59)

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)/60%60, int(t)%60)
}

// DayTimeRange is one inclusive start-end window on a weekday in a
// timezone, parsed from a "<DAY>/<RANGES>/<TIMEZONE>" condition value.
type DayTimeRange struct {
	Day      time.Weekday
	Start    TimeOfDay
	End      TimeOfDay
	Timezone string
}

// ParseDayTimeRanges parses a condition value of the form
// "<DAY>/<RANGES>/<TIMEZONE>" where DAY is one of M,T,W,R,F,S,U, RANGES is
// a comma-separated list of "HH:MM:SS-HH:MM:SS" windows (missing trailing
// components default to zero) or the literal "true" meaning the whole day.
func ParseDayTimeRanges(value string) ([]DayTimeRange, error) {
	// Timezone names contain slashes, so only the first two separators are
	// structural.
	parts := strings.SplitN(value, "/", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid day of the week time range %q: expected <DAY>/<RANGES>/<TIMEZONE>", value)
	}

	day, ok := dayLetters[parts[0]]
	if !ok {
		return nil, fmt.Errorf("invalid day of the week %q: must be one of M, T, W, R, F, S, U", parts[0])
	}

	tz := parts[2]
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	if parts[1] == "true" {
		return []DayTimeRange{{Day: day, Start: 0, End: endOfDay, Timezone: tz}}, nil
	}

	var ranges []DayTimeRange
	for _, spec := range strings.Split(parts[1], ",") {
		start, end, err := parseTimeRange(spec)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, DayTimeRange{Day: day, Start: start, End: end, Timezone: tz})
	}
	return ranges, nil
}

func parseTimeRange(spec string) (TimeOfDay, TimeOfDay, error) {
	bounds := strings.Split(spec, "-")
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("invalid time range %q: expected <START>-<END>", spec)
	}
	start, err := parseTimeOfDay(bounds[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time range %q: %w", spec, err)
	}
	end, err := parseTimeOfDay(bounds[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time range %q: %w", spec, err)
	}
	if start > end {
		return 0, 0, fmt.Errorf("invalid time range %q: start is after end", spec)
	}
	return start, end, nil
}

func parseTimeOfDay(s string) (TimeOfDay, error) {
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	// Missing minute/second components default to zero.
	vals := [3]int{}
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		vals[i] = n
	}
	return TimeOfDay(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// MergeJointTimeRanges collapses overlapping or touching ranges that share
// the same weekday and timezone into their union, leaving disjoint ranges
// separate. Ranges in different timezones are never merged, even when
// their wall-clock windows overlap numerically.
func MergeJointTimeRanges(ranges []DayTimeRange) []DayTimeRange {
	if len(ranges) < 2 {
		return ranges
	}

	sorted := make([]DayTimeRange, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Timezone != b.Timezone {
			return a.Timezone < b.Timezone
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Start < b.Start
	})

	merged := sorted[:1]
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Timezone == last.Timezone && r.Day == last.Day && r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// FindDayOfWeekTimeRange returns the end instant of the latest range that
// contains the given instant, evaluated in each range's own timezone and
// converted back to the instant's location. The boolean is false when no
// range on the matching weekday contains the instant. Both range bounds
// are inclusive.
func FindDayOfWeekTimeRange(ranges []DayTimeRange, at time.Time) (time.Time, bool) {
	var latest time.Time
	var found bool

	for _, r := range MergeJointTimeRanges(ranges) {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			continue // validated at parse time
		}
		local := at.In(loc)
		if local.Weekday() != r.Day {
			continue
		}
		t := TimeOfDay(local.Hour()*3600 + local.Minute()*60 + local.Second())
		if t < r.Start || t > r.End {
			continue
		}
		end := time.Date(local.Year(), local.Month(), local.Day(),
			int(r.End)/3600, int(r.End)/60%60, int(r.End)%60, 0, loc).
			In(at.Location())
		if !found || end.After(latest) {
			latest = end
			found = true
		}
	}
	return latest, found
}

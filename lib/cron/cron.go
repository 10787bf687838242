// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed cron expression. Create one with Parse, then
// call Next to compute the next matching time.
type Schedule struct {
	minutes     fieldSet
	hours       fieldSet
	daysOfMonth fieldSet
	months      fieldSet
	daysOfWeek  fieldSet
}

// fieldSet packs a cron field's allowed values (all within 0-63) into
// a uint64 bitmask.
type fieldSet uint64

func (s fieldSet) has(value int) bool { return s&(1<<uint(value)) != 0 }
func (s *fieldSet) add(value int)     { *s |= 1 << uint(value) }

// Parse parses a 5-field cron expression (minute, hour, day-of-month,
// month, day-of-week). Each field accepts comma-separated terms of the
// forms *, */N, V, V-V, and V-V/N.
func Parse(expression string) (Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: minute field: %w", err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: hour field: %w", err)
	}
	daysOfMonth, err := parseField(fields[2], 1, 31)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: month field: %w", err)
	}
	daysOfWeek, err := parseField(fields[4], 0, 6)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron: day-of-week field: %w", err)
	}

	return Schedule{
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: daysOfMonth,
		months:      months,
		daysOfWeek:  daysOfWeek,
	}, nil
}

// Next returns the earliest time strictly after t that matches the
// schedule, in UTC.
//
// Returns an error when no matching time exists within 4 years of t,
// which bounds the search on impossible schedules like Feb 31.
func (s Schedule) Next(t time.Time) (time.Time, error) {
	// Start from the next whole minute after t.
	t = t.UTC().Truncate(time.Minute).Add(time.Minute)

	// 4 years covers every leap-year cycle.
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !s.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
			continue
		}

		// Both day fields are checked as AND. A wildcard field has
		// all bits set, so it never constrains; the OR semantics of
		// classic cron (both fields restricted) are intentionally
		// not implemented.
		if !s.daysOfMonth.has(t.Day()) || !s.daysOfWeek.has(int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
			continue
		}

		if !s.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, time.UTC)
			continue
		}

		if !s.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}

		return t, nil
	}

	return time.Time{}, fmt.Errorf("cron: no matching time within 4 years of %s", t.Format(time.RFC3339))
}

// parseField parses one cron field into a bitmask. The field is a
// comma-separated list of terms.
func parseField(field string, minimum, maximum int) (fieldSet, error) {
	var result fieldSet
	for _, term := range strings.Split(field, ",") {
		bits, err := parseTerm(term, minimum, maximum)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses one term: *, */N, V, V-V, or V-V/N.
func parseTerm(term string, minimum, maximum int) (fieldSet, error) {
	parts := strings.SplitN(term, "/", 2)
	rangeExpression := parts[0]
	step := 1
	if len(parts) == 2 {
		parsed, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", parts[1], err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	var rangeStart, rangeEnd int
	switch {
	case rangeExpression == "*":
		rangeStart, rangeEnd = minimum, maximum
	case strings.ContainsRune(rangeExpression, '-'):
		startText, endText, _ := strings.Cut(rangeExpression, "-")
		var err error
		rangeStart, err = strconv.Atoi(startText)
		if err != nil {
			return 0, fmt.Errorf("invalid range start %q: %w", startText, err)
		}
		rangeEnd, err = strconv.Atoi(endText)
		if err != nil {
			return 0, fmt.Errorf("invalid range end %q: %w", endText, err)
		}
		if rangeStart > rangeEnd {
			return 0, fmt.Errorf("range start %d > end %d", rangeStart, rangeEnd)
		}
	default:
		value, err := strconv.Atoi(rangeExpression)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", rangeExpression, err)
		}
		rangeStart, rangeEnd = value, value
	}

	if rangeStart < minimum || rangeEnd > maximum {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, rangeStart, rangeEnd)
	}

	var result fieldSet
	for value := rangeStart; value <= rangeEnd; value += step {
		result.add(value)
	}
	return result, nil
}

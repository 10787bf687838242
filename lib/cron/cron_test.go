// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"strings"
	"testing"
	"time"
)

func mustParse(t *testing.T, expression string) Schedule {
	t.Helper()
	schedule, err := Parse(expression)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expression, err)
	}
	return schedule
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestParseValid(t *testing.T) {
	expressions := []string{
		"* * * * *",
		"0 7 * * *",
		"*/15 0-6 1,15 * 1-5",
		"30 3 * * 0",
		"0 0 1 1 *",
		"5,10,15 * * * *",
		"0-30/5 * * * *",
	}
	for _, expression := range expressions {
		t.Run(expression, func(t *testing.T) {
			if _, err := Parse(expression); err != nil {
				t.Errorf("Parse(%q) = %v, want nil", expression, err)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    string
	}{
		{"too_few_fields", "* * * *", "expected 5 fields"},
		{"too_many_fields", "* * * * * *", "expected 5 fields"},
		{"empty", "", "expected 5 fields"},
		{"minute_out_of_range", "60 * * * *", "out of range"},
		{"hour_out_of_range", "* 24 * * *", "out of range"},
		{"day_zero", "* * 0 * *", "out of range"},
		{"month_out_of_range", "* * * 13 *", "out of range"},
		{"dow_out_of_range", "* * * * 7", "out of range"},
		{"zero_step", "*/0 * * * *", "step must be positive"},
		{"reversed_range", "5-3 * * * *", "range start 5 > end 3"},
		{"non_numeric", "abc * * * *", "invalid value"},
		{"bad_step_value", "*/x * * * *", "invalid step"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.expression)
			if err == nil {
				t.Fatalf("Parse(%q) = nil, want error containing %q", test.expression, test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Parse(%q) = %q, want error containing %q", test.expression, err, test.wantErr)
			}
		})
	}
}

func TestNextEveryMinute(t *testing.T) {
	schedule := mustParse(t, "* * * * *")
	next, err := schedule.Next(utc(2026, 3, 2, 10, 30))
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2026, 3, 2, 10, 31); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextDaily(t *testing.T) {
	schedule := mustParse(t, "0 7 * * *")

	next, err := schedule.Next(utc(2026, 3, 2, 5, 0))
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2026, 3, 2, 7, 0); !next.Equal(want) {
		t.Errorf("before 7am: Next = %v, want %v", next, want)
	}

	next, err = schedule.Next(utc(2026, 3, 2, 8, 0))
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2026, 3, 3, 7, 0); !next.Equal(want) {
		t.Errorf("after 7am: Next = %v, want %v", next, want)
	}
}

func TestNextStrictlyAfter(t *testing.T) {
	// A time that matches the schedule exactly must advance to the
	// following occurrence, not return itself.
	schedule := mustParse(t, "30 12 * * *")
	next, err := schedule.Next(utc(2026, 3, 2, 12, 30))
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2026, 3, 3, 12, 30); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextWeekday(t *testing.T) {
	// 2026-03-06 is a Friday; "0 9 * * 1" fires Mondays at 09:00.
	schedule := mustParse(t, "0 9 * * 1")
	next, err := schedule.Next(utc(2026, 3, 6, 10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2026, 3, 9, 9, 0); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextMonthRollover(t *testing.T) {
	schedule := mustParse(t, "0 0 1 * *")
	next, err := schedule.Next(utc(2026, 3, 15, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if want := utc(2026, 4, 1, 0, 0); !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextImpossibleSchedule(t *testing.T) {
	// February 31st never matches; Next must terminate with an error.
	schedule := mustParse(t, "0 0 31 2 *")
	if _, err := schedule.Next(utc(2026, 1, 1, 0, 0)); err == nil {
		t.Fatal("Next on impossible schedule returned nil error")
	}
}

func TestNextStep(t *testing.T) {
	schedule := mustParse(t, "*/15 * * * *")
	times := []struct {
		from, want time.Time
	}{
		{utc(2026, 3, 2, 10, 0), utc(2026, 3, 2, 10, 15)},
		{utc(2026, 3, 2, 10, 16), utc(2026, 3, 2, 10, 30)},
		{utc(2026, 3, 2, 10, 46), utc(2026, 3, 2, 11, 0)},
	}
	for _, test := range times {
		next, err := schedule.Next(test.from)
		if err != nil {
			t.Fatal(err)
		}
		if !next.Equal(test.want) {
			t.Errorf("Next(%v) = %v, want %v", test.from, next, test.want)
		}
	}
}

// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"testing"
	"time"
)

func TestFirstRunCron(t *testing.T) {
	now := time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)
	next, err := FirstRun(ScheduleCron, "0 7 * * *", now)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("FirstRun = %v, want %v", next, want)
	}
}

func TestFirstRunCronInvalid(t *testing.T) {
	if _, err := FirstRun(ScheduleCron, "not a cron", time.Now()); err == nil {
		t.Error("invalid cron accepted")
	}
}

func TestFirstRunInterval(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	next, err := FirstRun(ScheduleInterval, "60000", now)
	if err != nil {
		t.Fatal(err)
	}
	if want := now.Add(time.Minute); !next.Equal(want) {
		t.Errorf("FirstRun = %v, want %v", next, want)
	}
}

func TestFirstRunIntervalInvalid(t *testing.T) {
	for _, value := range []string{"0", "-5", "abc", "1.5"} {
		if _, err := FirstRun(ScheduleInterval, value, time.Now()); err == nil {
			t.Errorf("interval %q accepted", value)
		}
	}
}

func TestFirstRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	next, err := FirstRun(ScheduleOnce, "2026-03-03T09:00:00Z", now)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("FirstRun = %v, want %v", next, want)
	}
}

func TestFirstRunOncePast(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if _, err := FirstRun(ScheduleOnce, "2026-03-01T09:00:00Z", now); err == nil {
		t.Error("past once timestamp accepted")
	}
}

func TestFirstRunUnknownType(t *testing.T) {
	if _, err := FirstRun(ScheduleType("weekly"), "x", time.Now()); err == nil {
		t.Error("unknown schedule type accepted")
	}
}

func TestNextRunAfter(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 30, 0, time.UTC)

	interval := &Task{ScheduleType: ScheduleInterval, ScheduleValue: "5000"}
	next, again, err := interval.NextRunAfter(now)
	if err != nil || !again {
		t.Fatalf("interval NextRunAfter: again=%v err=%v", again, err)
	}
	if want := now.Add(5 * time.Second); !next.Equal(want) {
		t.Errorf("interval next = %v, want %v", next, want)
	}

	once := &Task{ScheduleType: ScheduleOnce, ScheduleValue: "2026-03-02T12:00:00Z"}
	if _, again, err := once.NextRunAfter(now); err != nil || again {
		t.Errorf("once NextRunAfter: again=%v err=%v, want false,nil", again, err)
	}
}

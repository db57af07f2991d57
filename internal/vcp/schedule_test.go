package vcp

import (
	"strings"
	"testing"
)

func TestRecommendPracticeWindows_CapAndOrder(t *testing.T) {
	windows := RecommendPracticeWindows(ScheduleInput{
		CurrentShift:  ShiftDay,
		CurrentEnergy: 3,
		QuietStart:    22,
		QuietEnd:      7,
	})

	if len(windows) != 5 {
		t.Fatalf("got %d windows, want 5", len(windows))
	}
	// Best-first: later windows never outscore earlier ones on energy alone
	for i := 1; i < len(windows); i++ {
		if windows[i].EffectiveEnergy > windows[0].EffectiveEnergy {
			t.Errorf("window %d has higher energy than the first", i)
		}
	}
}

func TestRecommendPracticeWindows_NightShiftSuppressesEarlyToday(t *testing.T) {
	windows := RecommendPracticeWindows(ScheduleInput{
		CurrentShift:  ShiftNight,
		CurrentEnergy: 3,
	})

	for _, w := range windows {
		if w.DayOffset == 0 && (w.StartHour < 14 || w.StartHour > 22) {
			t.Errorf("night shift same-day slot at %d falls outside 14-22", w.StartHour)
		}
	}
}

func TestRecommendPracticeWindows_PreferredTimesWin(t *testing.T) {
	windows := RecommendPracticeWindows(ScheduleInput{
		CurrentShift:   ShiftDay,
		CurrentEnergy:  3,
		PreferredTimes: []string{"evening"},
	})

	top := windows[0]
	if top.StartHour < 18 || top.StartHour > 22 {
		t.Errorf("top window at %d, want an evening slot", top.StartHour)
	}
	if !strings.Contains(top.Reasoning, "matches your preferred time") {
		t.Errorf("reasoning = %q", top.Reasoning)
	}
}

func TestRecommendPracticeWindows_RecoveryRestedNextDay(t *testing.T) {
	windows := RecommendPracticeWindows(ScheduleInput{
		CurrentShift:  ShiftRecovery,
		CurrentEnergy: 2,
	})

	var today, later *PracticeWindow
	for i := range windows {
		switch {
		case windows[i].DayOffset == 0 && today == nil:
			today = &windows[i]
		case windows[i].DayOffset >= 1 && later == nil:
			later = &windows[i]
		}
	}

	if later == nil {
		t.Fatal("no post-recovery window recommended")
	}
	if later.EffectiveEnergy != 4 {
		t.Errorf("post-recovery energy = %d, want 4", later.EffectiveEnergy)
	}
	if !strings.Contains(later.Reasoning, "rested after recovery") {
		t.Errorf("reasoning = %q", later.Reasoning)
	}
	if today != nil && today.EffectiveEnergy != 1 {
		t.Errorf("recovery-day energy = %d, want 1", today.EffectiveEnergy)
	}
}

func TestRecommendPracticeWindows_QuietHoursAnnotateNotExclude(t *testing.T) {
	// Everything is quiet hours; slots still come back, flagged for quiet
	// practice.
	windows := RecommendPracticeWindows(ScheduleInput{
		CurrentShift:  ShiftOff,
		CurrentEnergy: 3,
		QuietStart:    0,
		QuietEnd:      23,
	})

	if len(windows) == 0 {
		t.Fatal("quiet hours must not exclude all slots")
	}
	for _, w := range windows {
		if w.StartHour < 23 {
			if w.NoiseOK {
				t.Errorf("slot at %d marked noise-friendly inside quiet hours", w.StartHour)
			}
			if !strings.Contains(w.Reasoning, "quiet practice only") {
				t.Errorf("reasoning = %q", w.Reasoning)
			}
		}
	}
}

func TestRecommendPracticeWindows_OvernightQuietRange(t *testing.T) {
	windows := RecommendPracticeWindows(ScheduleInput{
		CurrentShift:  ShiftDay,
		CurrentEnergy: 4,
		QuietStart:    21,
		QuietEnd:      9,
	})

	for _, w := range windows {
		inQuiet := w.StartHour >= 21 || w.StartHour < 9
		if w.NoiseOK == inQuiet {
			t.Errorf("slot at %d: noise_ok=%v inside overnight quiet range", w.StartHour, w.NoiseOK)
		}
	}
}

func TestConfidenceMapping(t *testing.T) {
	cases := []struct {
		energy int
		want   string
	}{
		{5, "high"},
		{4, "high"},
		{3, "medium"},
		{2, "low"},
		{1, "low"},
	}
	for _, tc := range cases {
		if got := confidenceFor(tc.energy); got != tc.want {
			t.Errorf("confidenceFor(%d) = %q, want %q", tc.energy, got, tc.want)
		}
	}
}

func TestHourLabel(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{0, "12am"},
		{7, "7am"},
		{12, "12pm"},
		{21, "9pm"},
		{24, "12am"},
	}
	for _, tc := range cases {
		if got := hourLabel(tc.hour); got != tc.want {
			t.Errorf("hourLabel(%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestWindowLabel(t *testing.T) {
	if got := windowLabel(0, 7); got != "Today 7am" {
		t.Errorf("label = %q", got)
	}
	if got := windowLabel(1, 19); got != "Tomorrow 7pm" {
		t.Errorf("label = %q", got)
	}
	if got := windowLabel(2, 12); got != "In 2 days 12pm" {
		t.Errorf("label = %q", got)
	}
}

func TestWindowReasoningShape(t *testing.T) {
	got := windowReasoning(7, 4, false, true, true)
	want := "7am-8am, good energy expected, matches your preferred time, noise-friendly"
	if got != want {
		t.Errorf("reasoning = %q, want %q", got, want)
	}
}

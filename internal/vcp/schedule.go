package vcp

import (
	"fmt"
	"sort"
	"strings"
)

// Shift describes the user's current work pattern for scheduling.
type Shift string

const (
	ShiftOff      Shift = "off"
	ShiftDay      Shift = "day"
	ShiftNight    Shift = "night"
	ShiftRecovery Shift = "recovery"
)

// ScheduleInput drives practice window recommendations.
type ScheduleInput struct {
	CurrentShift   Shift    `json:"current_shift"`
	CurrentEnergy  int      `json:"current_energy"` // 1-5
	QuietStart     int      `json:"quiet_hours_start"`
	QuietEnd       int      `json:"quiet_hours_end"`
	PreferredTimes []string `json:"preferred_times,omitempty"` // morning | afternoon | evening
	RecoveryHours  int      `json:"recovery_hours,omitempty"`
}

// PracticeWindow is one recommended hour-long practice slot.
type PracticeWindow struct {
	Label           string `json:"label"`
	StartHour       int    `json:"start_hour"`
	EndHour         int    `json:"end_hour"`
	DayOffset       int    `json:"day_offset"` // 0 today, 1 tomorrow, 2 day after
	EffectiveEnergy int    `json:"effective_energy"`
	NoiseOK         bool   `json:"noise_ok"`
	Confidence      string `json:"confidence"` // high | medium | low
	Reasoning       string `json:"reasoning"`
}

// candidateHours are the slots considered each day.
var candidateHours = []int{7, 9, 12, 15, 17, 19, 21}

var preferredRanges = map[string][2]int{
	"morning":   {6, 11},
	"afternoon": {12, 17},
	"evening":   {18, 22},
}

// RecommendPracticeWindows projects energy over the next three days and
// returns up to five practice slots, best first. Night shift suppresses
// same-day slots outside the 14-22 recovery window; quiet hours gate
// noise-friendly practice rather than exclude the slot.
func RecommendPracticeWindows(input ScheduleInput) []PracticeWindow {
	energy := input.CurrentEnergy
	if energy < 1 {
		energy = 1
	}
	if energy > 5 {
		energy = 5
	}

	windows := make([]PracticeWindow, 0, len(candidateHours)*3)
	scores := make(map[int]int)

	for dayOffset := 0; dayOffset <= 2; dayOffset++ {
		for _, hour := range candidateHours {
			if input.CurrentShift == ShiftNight && dayOffset == 0 && (hour < 14 || hour > 22) {
				continue
			}

			effective, rested := projectEnergy(input, energy, dayOffset)
			noiseOK := !inQuietHours(hour, input.QuietStart, input.QuietEnd)
			preferred := matchesPreferred(hour, input.PreferredTimes)

			window := PracticeWindow{
				Label:           windowLabel(dayOffset, hour),
				StartHour:       hour,
				EndHour:         hour + 1,
				DayOffset:       dayOffset,
				EffectiveEnergy: effective,
				NoiseOK:         noiseOK,
				Confidence:      confidenceFor(effective),
				Reasoning:       windowReasoning(hour, effective, rested, preferred, noiseOK),
			}

			score := effective * 2
			if preferred {
				score += 2
			}
			if noiseOK {
				score++
			}
			score -= dayOffset

			scores[len(windows)] = score
			windows = append(windows, window)
		}
	}

	order := make([]int, len(windows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	limit := 5
	if len(order) < limit {
		limit = len(order)
	}
	out := make([]PracticeWindow, 0, limit)
	for _, idx := range order[:limit] {
		out = append(out, windows[idx])
	}
	return out
}

// projectEnergy estimates energy for a future day. Recovery shifts start a
// level down today but read as rested once a rest day has passed.
func projectEnergy(input ScheduleInput, energy, dayOffset int) (int, bool) {
	effective := energy
	rested := false

	switch input.CurrentShift {
	case ShiftRecovery:
		if dayOffset == 0 {
			effective--
		} else {
			if effective < 4 {
				effective = 4
			}
			rested = true
		}
	case ShiftNight:
		if dayOffset >= 1 {
			effective++
		}
	default:
		if dayOffset >= 1 {
			effective++
		}
	}

	if effective < 1 {
		effective = 1
	}
	if effective > 5 {
		effective = 5
	}
	return effective, rested
}

// inQuietHours reports whether hour falls inside [start, end), handling
// overnight ranges like 22-7.
func inQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func matchesPreferred(hour int, preferred []string) bool {
	for _, p := range preferred {
		r, ok := preferredRanges[p]
		if ok && hour >= r[0] && hour <= r[1] {
			return true
		}
	}
	return false
}

func confidenceFor(energy int) string {
	switch {
	case energy >= 4:
		return "high"
	case energy >= 3:
		return "medium"
	default:
		return "low"
	}
}

func windowReasoning(hour, energy int, rested, preferred, noiseOK bool) string {
	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("%s-%s", hourLabel(hour), hourLabel(hour+1)))

	switch {
	case rested:
		parts = append(parts, "rested after recovery")
	case energy >= 4:
		parts = append(parts, "good energy expected")
	case energy == 3:
		parts = append(parts, "moderate energy")
	default:
		parts = append(parts, "limited energy")
	}

	if preferred {
		parts = append(parts, "matches your preferred time")
	}
	if noiseOK {
		parts = append(parts, "noise-friendly")
	} else {
		parts = append(parts, "quiet practice only")
	}
	return strings.Join(parts, ", ")
}

func windowLabel(dayOffset, hour int) string {
	switch dayOffset {
	case 0:
		return "Today " + hourLabel(hour)
	case 1:
		return "Tomorrow " + hourLabel(hour)
	default:
		return fmt.Sprintf("In %d days %s", dayOffset, hourLabel(hour))
	}
}

func hourLabel(hour int) string {
	h := hour % 24
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return fmt.Sprintf("%dam", h)
	case h == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-12)
	}
}

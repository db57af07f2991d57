package vcp

import "strings"

// Severity grades how disruptive a context transition is.
type Severity string

const (
	SeverityNone      Severity = "none"
	SeverityMinor     Severity = "minor"
	SeverityMajor     Severity = "major"
	SeverityEmergency Severity = "emergency"
)

// Change records one before/after pair in a transition.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// TransitionResult classifies the shift between two context snapshots.
type TransitionResult struct {
	Severity      Severity          `json:"severity"`
	Changes       map[string]Change `json:"changes"`
	AffectsSafety bool              `json:"affects_safety"`
}

// emergencyKeywords escalate a transition regardless of anything else.
var emergencyKeywords = []string{"emergency", "danger", "fire", "enforcement"}

// DetectTransition compares two context snapshots and grades the shift.
// Dimension changes grade minor (1-2) or major (3+ or an intensity jump of
// 3 or more); acute body signals, persona changes and constraint changes
// grade major; emergency keywords in private context or constraints grade
// emergency. Safety flips for acute body signals and constraint changes.
func DetectTransition(old, new_ *Context) TransitionResult {
	result := TransitionResult{
		Severity: SeverityNone,
		Changes:  map[string]Change{},
	}

	escalate := func(s Severity) {
		if severityRank(s) > severityRank(result.Severity) {
			result.Severity = s
		}
	}

	// Personal state dimension changes
	dimensionChanges := 0
	maxJump := 0
	for _, dim := range DimensionOrder {
		var oldDim, newDim *PersonalDimension
		if old != nil {
			oldDim = old.PersonalState[dim]
		}
		if new_ != nil {
			newDim = new_.PersonalState[dim]
		}
		if oldDim == nil && newDim == nil {
			continue
		}
		if oldDim == nil || newDim == nil ||
			oldDim.Value != newDim.Value || oldDim.Intensity != newDim.Intensity {
			dimensionChanges++
			result.Changes[dim] = Change{Old: describeDim(oldDim), New: describeDim(newDim)}
		}
		if oldDim != nil && newDim != nil {
			jump := newDim.Intensity - oldDim.Intensity
			if jump < 0 {
				jump = -jump
			}
			if jump > maxJump {
				maxJump = jump
			}
		}
	}
	if dimensionChanges >= 3 || maxJump >= 3 {
		escalate(SeverityMajor)
	} else if dimensionChanges > 0 {
		escalate(SeverityMinor)
	}

	// Acute body signals in the new state
	if new_ != nil {
		if body := new_.PersonalState[DimBodySignals]; body != nil {
			if body.Value == "pain" && body.Intensity >= 4 {
				escalate(SeverityMajor)
				result.AffectsSafety = true
			}
			if body.Value == "unwell" {
				if body.Intensity >= 5 {
					escalate(SeverityMajor)
				}
				if body.Intensity >= 4 {
					result.AffectsSafety = true
				}
			}
		}
	}

	// Persona change
	oldPersona := ActivePersona(old)
	newPersona := ActivePersona(new_)
	if oldPersona != newPersona {
		escalate(SeverityMajor)
		result.Changes["persona"] = Change{Old: string(oldPersona), New: string(newPersona)}
	}

	// Constraint changes always affect safety
	if !constraintsEqual(old, new_) {
		escalate(SeverityMajor)
		result.AffectsSafety = true
		result.Changes["constraints"] = Change{
			Old: constraintsOf(old),
			New: constraintsOf(new_),
		}
	}

	// Emergency keywords in the new snapshot
	if new_ != nil && hasEmergencyKeyword(new_) {
		escalate(SeverityEmergency)
		result.AffectsSafety = true
		result.Changes["emergency"] = Change{Old: false, New: true}
	}

	return result
}

func severityRank(s Severity) int {
	switch s {
	case SeverityEmergency:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

func describeDim(d *PersonalDimension) any {
	if d == nil {
		return nil
	}
	return map[string]any{"value": d.Value, "intensity": d.Intensity}
}

func constraintsOf(ctx *Context) map[string]bool {
	if ctx == nil || ctx.Constraints == nil {
		return map[string]bool{}
	}
	return ctx.Constraints
}

func constraintsEqual(old, new_ *Context) bool {
	a, b := constraintsOf(old), constraintsOf(new_)
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}

// hasEmergencyKeyword scans private context string values and constraint
// keys for the fixed emergency keyword set.
func hasEmergencyKeyword(ctx *Context) bool {
	matches := func(s string) bool {
		lower := strings.ToLower(s)
		for _, keyword := range emergencyKeywords {
			if strings.Contains(lower, keyword) {
				return true
			}
		}
		return false
	}

	for _, v := range ctx.PrivateContext {
		if s, ok := v.(string); ok && matches(s) {
			return true
		}
	}
	for k := range ctx.Constraints {
		if matches(k) {
			return true
		}
	}
	return false
}

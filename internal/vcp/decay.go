package vcp

import (
	"log"
	"math"
	"sort"
	"time"
)

// DecayCurve selects how a declared intensity fades toward baseline.
type DecayCurve string

const (
	CurveExponential DecayCurve = "exponential"
	CurveLinear      DecayCurve = "linear"
	CurveStep        DecayCurve = "step"
)

// DecayStep is one threshold of a step curve: after AfterSeconds, the
// effective intensity drops to Intensity.
type DecayStep struct {
	AfterSeconds int `json:"after_seconds"`
	Intensity    int `json:"intensity"`
}

// DecayPolicy controls how a declared dimension fades over time.
type DecayPolicy struct {
	Curve DecayCurve `json:"curve"`

	// HalfLifeSeconds is the time for the declared intensity to fall
	// halfway to baseline (exponential), or the basis for the default
	// full-decay time (linear).
	HalfLifeSeconds int `json:"half_life_seconds"`

	// Baseline is the floor the intensity decays toward, normally 1.
	Baseline int `json:"baseline"`

	// StaleThreshold is the fraction of the declared-above-baseline range
	// at or below which the dimension reads as stale.
	StaleThreshold float64 `json:"stale_threshold"`

	// FreshWindowSeconds is how long after declaration the dimension is
	// considered fully active regardless of curve.
	FreshWindowSeconds int `json:"fresh_window_seconds"`

	// Pinned disables decay entirely.
	Pinned bool `json:"pinned,omitempty"`

	// ResetOnEngagement re-stamps declared_at when the user engages.
	ResetOnEngagement bool `json:"reset_on_engagement,omitempty"`

	// FullDecaySeconds is the linear-curve time to reach baseline.
	// Zero means 4x the half-life.
	FullDecaySeconds int `json:"full_decay_seconds,omitempty"`

	// Steps holds the step-curve thresholds.
	Steps []DecayStep `json:"steps,omitempty"`
}

// defaultDecayPolicies maps each canonical dimension to its default policy.
// Half-lives reflect how quickly each dimension loses meaning: urgency in
// minutes, body signals over most of a day.
var defaultDecayPolicies = map[string]DecayPolicy{
	DimCognitiveState: {
		Curve:              CurveExponential,
		HalfLifeSeconds:    720,
		Baseline:           1,
		StaleThreshold:     0.3,
		FreshWindowSeconds: 60,
		ResetOnEngagement:  true,
	},
	DimEmotionalTone: {
		Curve:              CurveExponential,
		HalfLifeSeconds:    1800,
		Baseline:           1,
		StaleThreshold:     0.3,
		FreshWindowSeconds: 60,
	},
	DimEnergyLevel: {
		Curve:              CurveExponential,
		HalfLifeSeconds:    7200,
		Baseline:           1,
		StaleThreshold:     0.3,
		FreshWindowSeconds: 60,
	},
	DimPerceivedUrgency: {
		Curve:              CurveExponential,
		HalfLifeSeconds:    900,
		Baseline:           1,
		StaleThreshold:     0.3,
		FreshWindowSeconds: 60,
	},
	DimBodySignals: {
		Curve:              CurveExponential,
		HalfLifeSeconds:    14400,
		Baseline:           1,
		StaleThreshold:     0.3,
		FreshWindowSeconds: 60,
	},
}

// DefaultDecayPolicy returns the default policy for a dimension. Unknown
// dimensions get the perceived_urgency defaults (the fastest-fading curve,
// the safe choice for a dimension we know nothing about).
func DefaultDecayPolicy(dimension string) DecayPolicy {
	if policy, ok := defaultDecayPolicies[dimension]; ok {
		return policy
	}
	return defaultDecayPolicies[DimPerceivedUrgency]
}

// policyFor resolves the effective policy for a dimension, preferring the
// per-dimension override.
func policyFor(dimension string, dim *PersonalDimension) DecayPolicy {
	if dim != nil && dim.Decay != nil {
		return *dim.Decay
	}
	return DefaultDecayPolicy(dimension)
}

// EffectiveIntensity computes the decayed intensity of a declaration at
// time now. The result never falls below the policy baseline.
func EffectiveIntensity(declared int, declaredAt time.Time, policy DecayPolicy, now time.Time) int {
	if policy.Pinned {
		return declared
	}

	elapsed := now.Sub(declaredAt).Seconds()
	if elapsed < 0 {
		log.Printf("warning: declaration timestamp is in the future; treating as just declared")
		return declared
	}
	if elapsed == 0 {
		return declared
	}

	switch policy.Curve {
	case CurveExponential:
		if policy.HalfLifeSeconds <= 0 {
			return declared
		}
		decayed := float64(policy.Baseline) +
			float64(declared-policy.Baseline)*math.Exp(-math.Ln2/float64(policy.HalfLifeSeconds)*elapsed)
		effective := int(math.Floor(decayed))
		if effective < policy.Baseline {
			return policy.Baseline
		}
		return effective

	case CurveLinear:
		fullDecay := policy.FullDecaySeconds
		if fullDecay <= 0 {
			fullDecay = 4 * policy.HalfLifeSeconds
		}
		if fullDecay <= 0 {
			return declared
		}
		fraction := elapsed / float64(fullDecay)
		if fraction > 1 {
			fraction = 1
		}
		decayed := float64(declared) - float64(declared-policy.Baseline)*fraction
		effective := int(math.Floor(decayed))
		if effective < policy.Baseline {
			return policy.Baseline
		}
		return effective

	case CurveStep:
		steps := append([]DecayStep(nil), policy.Steps...)
		sort.Slice(steps, func(i, j int) bool {
			return steps[i].AfterSeconds > steps[j].AfterSeconds
		})
		for _, step := range steps {
			if elapsed >= float64(step.AfterSeconds) {
				if step.Intensity < policy.Baseline {
					return policy.Baseline
				}
				return step.Intensity
			}
		}
		return declared

	default:
		return declared
	}
}

// LifecycleState classifies a declaration's position on its decay curve.
func LifecycleState(declared int, declaredAt time.Time, policy DecayPolicy, now time.Time) Lifecycle {
	if policy.Pinned {
		return LifecycleActive
	}

	elapsed := now.Sub(declaredAt).Seconds()
	if elapsed <= 0 {
		return LifecycleSet
	}
	if elapsed < float64(policy.FreshWindowSeconds) {
		return LifecycleActive
	}

	effective := EffectiveIntensity(declared, declaredAt, policy, now)
	if effective <= policy.Baseline {
		return LifecycleExpired
	}
	staleCutoff := float64(policy.Baseline) + float64(declared-policy.Baseline)*policy.StaleThreshold
	if float64(effective) <= staleCutoff {
		return LifecycleStale
	}
	return LifecycleDecaying
}

// EffectiveState returns the personal state with decayed intensities and a
// lifecycle classification per dimension, without touching declared values.
type EffectiveDimension struct {
	Value     string    `json:"value"`
	Declared  int       `json:"declared_intensity"`
	Effective int       `json:"effective_intensity"`
	Lifecycle Lifecycle `json:"lifecycle"`
	Extended  string    `json:"extended,omitempty"`
	Pinned    bool      `json:"pinned,omitempty"`

	// ElapsedSeconds since declaration; 0 when declared_at is absent.
	ElapsedSeconds int `json:"elapsed_seconds"`
}

// EffectiveState computes the decayed view of every declared dimension in
// canonical order.
func EffectiveState(state PersonalState, now time.Time) map[string]EffectiveDimension {
	out := make(map[string]EffectiveDimension, len(state))
	for key, dim := range state {
		if dim == nil {
			continue
		}
		policy := policyFor(key, dim)
		declaredAt, ok := ParseTimestamp(dim.DeclaredAt)
		if !ok {
			declaredAt = now
		}
		elapsed := int(now.Sub(declaredAt).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		out[key] = EffectiveDimension{
			Value:          dim.Value,
			Declared:       dim.Intensity,
			Effective:      EffectiveIntensity(dim.Intensity, declaredAt, policy, now),
			Lifecycle:      LifecycleState(dim.Intensity, declaredAt, policy, now),
			Extended:       dim.Extended,
			Pinned:         policy.Pinned,
			ElapsedSeconds: elapsed,
		}
	}
	return out
}

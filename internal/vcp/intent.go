package vcp

import (
	"sort"
	"time"
)

// IntentCategory labels the kind of interaction the user is probably
// starting, inferred from state alone before any message is read.
type IntentCategory string

const (
	IntentCrisisSupport       IntentCategory = "crisis_support"
	IntentHealthCheck         IntentCategory = "health_check"
	IntentEmotionalProcessing IntentCategory = "emotional_processing"
	IntentUrgentTask          IntentCategory = "urgent_task"
	IntentProfessionalInquiry IntentCategory = "professional_inquiry"
	IntentPersonalExploration IntentCategory = "personal_exploration"
	IntentCreativeWork        IntentCategory = "creative_work"
	IntentLearning            IntentCategory = "learning"
	IntentCasualConversation  IntentCategory = "casual_conversation"
	IntentRoutineCheck        IntentCategory = "routine_check"
)

// IntentGuess is one scored intent candidate. ContributingDimensions
// names the state dimensions and signals that drove the score.
type IntentGuess struct {
	Category               IntentCategory `json:"category"`
	Confidence             float64        `json:"confidence"`
	Reasoning              string         `json:"reasoning"`
	ContributingDimensions []string       `json:"contributing_dimensions"`
}

// IntentClassification is the ranked outcome of intent inference.
type IntentClassification struct {
	Primary      IntentGuess   `json:"primary"`
	Alternatives []IntentGuess `json:"alternatives"`
}

// categoricalSignals are non-state hints extracted from the context.
type categoricalSignals struct {
	workplace  bool
	colleagues bool
	evening    bool
	morning    bool
}

func extractSignals(ctx *Context) categoricalSignals {
	var s categoricalSignals
	if ctx == nil {
		return s
	}
	if role := stringField(ctx.PublicProfile, "role"); role != "" {
		s.workplace = true
		s.colleagues = true
	}
	if times, ok := ctx.Availability["best_times"].([]any); ok {
		for _, t := range times {
			switch t {
			case "evening":
				s.evening = true
			case "morning":
				s.morning = true
			}
		}
	}
	return s
}

// ClassifyIntent infers the likely interaction intent from the decayed
// personal state and categorical signals. Confidence values are fixed per
// heuristic; no learning happens here.
func ClassifyIntent(ctx *Context, now time.Time) IntentClassification {
	effective := EffectiveState(stateOf(ctx), now)
	signals := extractSignals(ctx)

	at := func(dim, value string) int {
		e, ok := effective[dim]
		if !ok || e.Value != value {
			return 0
		}
		return e.Effective
	}
	has := func(dim string) bool {
		_, ok := effective[dim]
		return ok
	}

	candidates := make([]IntentGuess, 0, 8)
	add := func(category IntentCategory, confidence float64, reasoning string, dims ...string) {
		if dims == nil {
			dims = []string{}
		}
		candidates = append(candidates, IntentGuess{
			Category:               category,
			Confidence:             confidence,
			Reasoning:              reasoning,
			ContributingDimensions: dims,
		})
	}
	maxConfidence := func() float64 {
		best := 0.0
		for _, c := range candidates {
			if c.Confidence > best {
				best = c.Confidence
			}
		}
		return best
	}

	if at(DimPerceivedUrgency, "critical") >= 4 {
		add(IntentCrisisSupport, 0.9, "critical urgency declared", DimPerceivedUrgency)
	}
	if at(DimBodySignals, "pain") >= 3 || at(DimBodySignals, "unwell") >= 3 {
		add(IntentHealthCheck, 0.75, "acute body signals", DimBodySignals)
	}
	if at(DimEmotionalTone, "frustrated") >= 4 || at(DimEmotionalTone, "tense") >= 4 {
		add(IntentEmotionalProcessing, 0.7, "strong negative emotional tone", DimEmotionalTone)
	}
	if at(DimPerceivedUrgency, "pressured") >= 1 {
		if signals.workplace {
			add(IntentUrgentTask, 0.75, "pressured in a work context", DimPerceivedUrgency, "location")
		} else {
			add(IntentUrgentTask, 0.6, "pressured", DimPerceivedUrgency)
		}
	}
	if signals.workplace || signals.colleagues {
		if at(DimCognitiveState, "focused") >= 1 {
			add(IntentProfessionalInquiry, 0.85, "focused in a work context", "location", "activity", DimCognitiveState)
		} else {
			add(IntentProfessionalInquiry, 0.7, "work context signals", "location", "activity")
		}
	}
	if signals.evening || !signals.workplace {
		confidence := 0.55
		reasoning := "off-hours context"
		dims := []string{"location", "time"}
		if at(DimEmotionalTone, "calm") >= 1 {
			confidence = 0.7
			reasoning = "calm, off-hours context"
			dims = append(dims, DimEmotionalTone)
		}
		if at(DimCognitiveState, "reflective") >= 1 {
			confidence = 0.75
			reasoning = "reflective, off-hours context"
			dims = append(dims, DimCognitiveState)
		}
		add(IntentPersonalExploration, confidence, reasoning, dims...)
	}
	if at(DimEmotionalTone, "uplifted") >= 1 {
		add(IntentCreativeWork, 0.55, "uplifted emotional tone", DimEmotionalTone)
	}
	if at(DimCognitiveState, "focused") >= 1 && maxConfidence() < 0.7 {
		add(IntentLearning, 0.5, "focused with no pressing signals", DimCognitiveState)
	}
	noUrgency := !has(DimPerceivedUrgency) || at(DimPerceivedUrgency, "unhurried") >= 1
	if noUrgency && !signals.workplace && maxConfidence() < 0.6 {
		add(IntentCasualConversation, 0.4, "no urgency, no work context")
	}
	add(IntentRoutineCheck, 0.3, "fallback")

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	// Dedupe by category, keeping the highest-confidence guess
	seen := make(map[IntentCategory]bool, len(candidates))
	ranked := make([]IntentGuess, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Category] {
			continue
		}
		seen[c.Category] = true
		ranked = append(ranked, c)
	}

	result := IntentClassification{Primary: ranked[0]}
	if len(ranked) > 1 {
		end := len(ranked)
		if end > 4 {
			end = 4
		}
		result.Alternatives = ranked[1:end]
	}
	return result
}

func stateOf(ctx *Context) PersonalState {
	if ctx == nil {
		return nil
	}
	return ctx.PersonalState
}

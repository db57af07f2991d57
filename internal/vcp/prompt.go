package vcp

import (
	"fmt"
	"strings"
	"time"
)

// GenParams are model sampling parameters derived from personal state.
type GenParams struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// GenerationParams derives sampling parameters from the decayed personal
// state. Pressure narrows the output; a calm or uplifted state loosens it.
func GenerationParams(state PersonalState, now time.Time) GenParams {
	params := GenParams{Temperature: 0.7, MaxTokens: 1024}

	effective := EffectiveState(state, now)
	at := func(dim, value string) int {
		e, ok := effective[dim]
		if !ok || e.Value != value {
			return 0
		}
		return e.Effective
	}

	switch {
	case at(DimPerceivedUrgency, "critical") >= 3:
		params.Temperature = 0.3
		params.MaxTokens = 512
	case at(DimPerceivedUrgency, "pressured") >= 3:
		params.Temperature = 0.4
		params.MaxTokens = 640
	case at(DimEmotionalTone, "frustrated") >= 3:
		params.Temperature = 0.5
	case at(DimEmotionalTone, "uplifted") >= 2 || at(DimEmotionalTone, "calm") >= 3:
		params.Temperature = 0.9
	}

	if at(DimCognitiveState, "overloaded") >= 3 && params.MaxTokens > 640 {
		params.MaxTokens = 640
	}

	return params
}

// BuildSystemPrompt assembles a system prompt from the constitution's
// resolved rules, the persona tone and the decayed personal state. The
// persona override, when set, replaces the constitution's persona.
func BuildSystemPrompt(ctx *Context, constitutionID string, personaOverride Persona, now time.Time) string {
	var b strings.Builder

	constitution, ok := ConstitutionByID(constitutionID)
	if !ok {
		constitution, _ = ConstitutionByID(DefaultConstitutionID)
	}

	persona := constitution.Persona
	if personaOverride != "" {
		persona = personaOverride
	}
	tone := PersonaTone(persona)

	fmt.Fprintf(&b, "You are acting under the %q constitution (adherence %d of 5).\n",
		constitution.Title, constitution.Adherence)
	fmt.Fprintf(&b, "Persona: %s. Communicate in a %s style with %s encouragement and %s directness.\n",
		persona, tone.Style, tone.Encouragement, tone.Directness)

	resolved := ResolveRules(constitution, promptConstraints(ctx))
	if len(resolved.Active) > 0 {
		b.WriteString("\nActive rules, strongest first:\n")
		for _, rule := range resolved.Active {
			fmt.Fprintf(&b, "- %s (%s)\n", rule.Text, rule.Reasoning)
		}
	}

	if ctx != nil {
		if goal := stringField(ctx.PublicProfile, "goal"); goal != "" {
			fmt.Fprintf(&b, "\nThe user's stated goal: %s\n", goal)
		}
		effective := EffectiveState(ctx.PersonalState, now)
		if len(effective) > 0 {
			b.WriteString("\nCurrent state (decayed to now):\n")
			for _, dim := range DimensionOrder {
				e, ok := effective[dim]
				if !ok {
					continue
				}
				fmt.Fprintf(&b, "- %s: %s at %d of 5 (%s)\n", dim, e.Value, e.Effective, e.Lifecycle)
			}
		}
		if ctx.SystemContext != "" {
			fmt.Fprintf(&b, "\nSituational context: %s\n", ctx.SystemContext)
		}
	}

	b.WriteString("\nNever reveal or reference the user's private context in your responses.")
	return b.String()
}

func promptConstraints(ctx *Context) map[string]bool {
	if ctx == nil {
		return nil
	}
	return DerivedConstraints(ctx)
}

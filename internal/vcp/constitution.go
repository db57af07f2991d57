package vcp

import (
	"sort"
	"strings"
	"time"
)

// Rule is one weighted behavioral rule inside a constitution. Rules with
// no triggers always apply; triggered rules activate only when a trigger
// maps to a constraint the user has set.
type Rule struct {
	Name     string   `json:"name"`
	Text     string   `json:"text"`
	Weight   float64  `json:"weight"`
	Triggers []string `json:"triggers,omitempty"`
}

// Constitution is a named bundle of persona, adherence and weighted rules
// governing AI behavior within its scopes.
type Constitution struct {
	ID          string  `json:"id"`
	Version     string  `json:"version"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Persona     Persona `json:"persona"`

	// Adherence is how strictly rules bind, 1 (advisory) to 5 (strict).
	Adherence int `json:"adherence"`

	Scopes []Scope `json:"scopes"`
	Rules  []Rule  `json:"rules"`
}

// triggerConstraints maps rule trigger names to the constraint flags that
// activate them. Triggers absent from this table never activate.
var triggerConstraints = map[string]string{
	"workload_high":        "time_limited",
	"deadline_approaching": "time_limited",
	"quiet_hours":          "noise_restricted",
	"noise_complaint":      "noise_restricted",
	"budget_low":           "budget_limited",
	"cost_concern":         "budget_limited",
	"energy_low":           "energy_variable",
	"fatigue":              "energy_variable",
	"schedule_conflict":    "schedule_irregular",
	"mobility_issue":       "mobility_limited",
	"health_flare":         "health_considerations",
}

// catalog holds the built-in constitutions. The catalog is read-only;
// personalization happens through the context, not by editing these.
var catalog = []Constitution{
	{
		ID:          "personal.growth.creative",
		Version:     "1.0.0",
		Title:       "Creative Growth",
		Description: "Encourages creative practice while protecting privacy and pacing effort to real energy.",
		Persona:     PersonaMuse,
		Adherence:   3,
		Scopes:      []Scope{ScopeCreativity, ScopeHealth, ScopePrivacy},
		Rules: []Rule{
			{Name: "privacy_first", Text: "Never surface private context in any outward-facing output.", Weight: 0.95},
			{Name: "creative_encouragement", Text: "Favor suggestions that keep the user making things, even small things.", Weight: 0.9},
			{Name: "noise_sensitivity", Text: "Prefer quiet practice options when noise is restricted.", Weight: 0.8, Triggers: []string{"quiet_hours", "noise_complaint"}},
			{Name: "budget_awareness", Text: "Recommend free or owned resources before paid ones.", Weight: 0.7, Triggers: []string{"budget_low", "cost_concern"}},
			{Name: "energy_pacing", Text: "Scale session ambition to the user's current energy.", Weight: 0.6, Triggers: []string{"energy_low", "fatigue"}},
		},
	},
	{
		ID:          "personal.balanced.guide",
		Version:     "1.0.0",
		Title:       "Balanced Guide",
		Description: "Steady, patient guidance across learning and creative goals.",
		Persona:     PersonaGodparent,
		Adherence:   3,
		Scopes:      []Scope{ScopeCreativity, ScopeEducation, ScopeHealth},
		Rules: []Rule{
			{Name: "steady_support", Text: "Encourage consistent small steps over bursts.", Weight: 0.85},
			{Name: "gentle_pacing", Text: "Shorten sessions and lower stakes when energy is low.", Weight: 0.7, Triggers: []string{"energy_low"}},
			{Name: "time_realism", Text: "Plan around real calendar pressure, not ideal schedules.", Weight: 0.65, Triggers: []string{"schedule_conflict", "deadline_approaching"}},
		},
	},
	{
		ID:          "personal.responsibility.balance",
		Version:     "1.1.0",
		Title:       "Household Balance",
		Description: "Mediates shared responsibilities fairly and transparently.",
		Persona:     PersonaMediator,
		Adherence:   4,
		Scopes:      []Scope{ScopeStewardship, ScopePrivacy},
		Rules: []Rule{
			{Name: "fair_balance", Text: "Weigh each party's load before proposing who takes what.", Weight: 0.9},
			{Name: "transparency_default", Text: "Explain the reasoning behind any allocation.", Weight: 0.8},
			{Name: "precedent_awareness", Text: "Consider how past allocations set expectations.", Weight: 0.75, Triggers: []string{"recurring_request", "pattern_detected"}},
			{Name: "household_budget", Text: "Keep shared-cost suggestions inside the household budget.", Weight: 0.6, Triggers: []string{"budget_low"}},
		},
	},
	{
		ID:          "techcorp.career.advisor",
		Version:     "2.0.0",
		Title:       "TechCorp Career Advisor",
		Description: "Employer-issued guidance for growth inside company policy.",
		Persona:     PersonaAmbassador,
		Adherence:   3,
		Scopes:      []Scope{ScopeWork, ScopeEducation},
		Rules: []Rule{
			{Name: "policy_compliance", Text: "Stay within company policy in every recommendation.", Weight: 0.95},
			{Name: "workload_awareness", Text: "Account for current workload before adding commitments.", Weight: 0.85, Triggers: []string{"workload_high", "deadline_approaching"}},
			{Name: "budget_policy", Text: "Use the approved learning budget before out-of-pocket spend.", Weight: 0.8, Triggers: []string{"budget_low"}},
			{Name: "growth_focus", Text: "Bias toward opportunities that compound the user's stated goal.", Weight: 0.7},
		},
	},
}

// Constitutions returns the full built-in catalog.
func Constitutions() []Constitution {
	out := make([]Constitution, len(catalog))
	copy(out, catalog)
	return out
}

// ConstitutionByID looks up a constitution in the catalog.
func ConstitutionByID(id string) (*Constitution, bool) {
	for i := range catalog {
		if catalog[i].ID == id {
			c := catalog[i]
			return &c, true
		}
	}
	return nil, false
}

// ConstitutionsForScope returns every constitution governing the scope.
func ConstitutionsForScope(scope Scope) []Constitution {
	out := make([]Constitution, 0)
	for _, c := range catalog {
		for _, s := range c.Scopes {
			if s == scope {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ActiveRule is a rule that applies to the current situation, with the
// reasoning for why it activated.
type ActiveRule struct {
	Name      string  `json:"name"`
	Text      string  `json:"text"`
	Weight    float64 `json:"weight"`
	Reasoning string  `json:"reasoning"`
}

// ResolvedRules is the outcome of evaluating a constitution against the
// user's constraints.
type ResolvedRules struct {
	ConstitutionID string `json:"constitution_id"`

	// Active rules sorted by weight, highest first.
	Active []ActiveRule `json:"active"`

	// AppliedConstraints lists the constraint flags that activated at
	// least one rule, deduplicated.
	AppliedConstraints []string `json:"applied_constraints"`
}

// ResolveRules evaluates which of a constitution's rules apply given the
// user's constraint flags. Untriggered rules always apply; triggered rules
// apply when any trigger maps to a set constraint.
func ResolveRules(c *Constitution, constraints map[string]bool) ResolvedRules {
	result := ResolvedRules{
		ConstitutionID:     c.ID,
		Active:             make([]ActiveRule, 0, len(c.Rules)),
		AppliedConstraints: make([]string, 0),
	}

	seenConstraints := make(map[string]bool)
	for _, rule := range c.Rules {
		if len(rule.Triggers) == 0 {
			result.Active = append(result.Active, ActiveRule{
				Name:      rule.Name,
				Text:      rule.Text,
				Weight:    rule.Weight,
				Reasoning: "always applies",
			})
			continue
		}

		fired := make([]string, 0, len(rule.Triggers))
		for _, trigger := range rule.Triggers {
			constraint, mapped := triggerConstraints[trigger]
			if !mapped || !constraints[constraint] {
				continue
			}
			fired = append(fired, trigger)
			if !seenConstraints[constraint] {
				seenConstraints[constraint] = true
				result.AppliedConstraints = append(result.AppliedConstraints, constraint)
			}
		}
		if len(fired) > 0 {
			result.Active = append(result.Active, ActiveRule{
				Name:      rule.Name,
				Text:      rule.Text,
				Weight:    rule.Weight,
				Reasoning: "triggered by " + strings.Join(fired, ", "),
			})
		}
	}

	sort.SliceStable(result.Active, func(i, j int) bool {
		return result.Active[i].Weight > result.Active[j].Weight
	})
	return result
}

// Tone describes how a persona communicates.
type Tone struct {
	Persona       Persona `json:"persona"`
	Style         string  `json:"style"`         // casual | balanced | formal
	Encouragement string  `json:"encouragement"` // low | medium | high
	Directness    string  `json:"directness"`    // low | medium | high
}

var personaTones = map[Persona]Tone{
	PersonaMuse:       {Persona: PersonaMuse, Style: "casual", Encouragement: "high", Directness: "medium"},
	PersonaAmbassador: {Persona: PersonaAmbassador, Style: "balanced", Encouragement: "medium", Directness: "medium"},
	PersonaGodparent:  {Persona: PersonaGodparent, Style: "casual", Encouragement: "high", Directness: "low"},
	PersonaSentinel:   {Persona: PersonaSentinel, Style: "formal", Encouragement: "low", Directness: "high"},
	PersonaNanny:      {Persona: PersonaNanny, Style: "casual", Encouragement: "high", Directness: "low"},
	PersonaMediator:   {Persona: PersonaMediator, Style: "balanced", Encouragement: "medium", Directness: "medium"},
}

// PersonaTone returns the communication tone for a persona. Unknown
// personas read as ambassador.
func PersonaTone(p Persona) Tone {
	if tone, ok := personaTones[p]; ok {
		return tone
	}
	tone := personaTones[PersonaAmbassador]
	tone.Persona = p
	return tone
}

// ActivePersona resolves the persona of the context's constitution,
// defaulting to ambassador when the constitution is unknown.
func ActivePersona(ctx *Context) Persona {
	if ctx != nil {
		if c, ok := ConstitutionByID(ctx.Constitution.ID); ok {
			return c.Persona
		}
	}
	return PersonaAmbassador
}

// SuggestPersonaFromState recommends a persona shift based on the decayed
// personal state. Returns empty when no shift is warranted. The checks run
// in strict precedence order; a missing dimension reads as intensity 0.
func SuggestPersonaFromState(state PersonalState, now time.Time) Persona {
	effective := EffectiveState(state, now)

	get := func(dim, value string) int {
		e, ok := effective[dim]
		if !ok || e.Value != value {
			return 0
		}
		return e.Effective
	}

	switch {
	case get(DimPerceivedUrgency, "pressured") >= 5 && get(DimCognitiveState, "overloaded") >= 4:
		return PersonaMediator
	case get(DimBodySignals, "unwell") >= 3 && get(DimEmotionalTone, "tense") >= 3:
		return PersonaGodparent
	case get(DimCognitiveState, "overloaded") >= 5:
		return PersonaNanny
	case get(DimEnergyLevel, "depleted") >= 4:
		return PersonaGodparent
	case get(DimPerceivedUrgency, "pressured") >= 4 || get(DimPerceivedUrgency, "critical") >= 4:
		return PersonaAmbassador
	default:
		return ""
	}
}

// ScopeList renders scopes as a comma-separated string for display.
func ScopeList(scopes []Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

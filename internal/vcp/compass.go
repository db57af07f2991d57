package vcp

// CompassProfile is a coarse values profile used to bootstrap a context
// for a user who has not picked a constitution yet.
type CompassProfile struct {
	RiskPosture     string `json:"risk_posture"`     // cautious | balanced | adventurous
	CareOrientation string `json:"care_orientation"` // self | relational | communal
	Autonomy        string `json:"autonomy"`         // guided | collaborative | independent
}

// GenerationPrefs are default response-shaping preferences derived from a
// compass profile.
type GenerationPrefs struct {
	Style       string `json:"style"`       // concise | conversational | thorough
	Explanation string `json:"explanation"` // minimal | contextual | detailed
}

// DimensionalModifiers tune rule evaluation for a derived setup.
type DimensionalModifiers struct {
	// TrustDefault is the starting trust toward AI suggestions, 0-1.
	TrustDefault float64 `json:"trust_default"`

	// RuleRigidity scales how strictly triggered rules bind, 0-1.
	RuleRigidity float64 `json:"rule_rigidity"`
}

// CompassDerivation is the bootstrap output for a compass profile.
type CompassDerivation struct {
	Constitutions []string             `json:"constitutions"`
	Prefs         GenerationPrefs      `json:"generation_prefs"`
	Modifiers     DimensionalModifiers `json:"dimensional_modifiers"`
}

// DeriveFromCompass maps a values profile onto catalog constitutions and
// default preferences. The mapping is a fixed table, not a model.
func DeriveFromCompass(profile CompassProfile) CompassDerivation {
	out := CompassDerivation{
		Constitutions: deriveConstitutions(profile),
		Prefs:         deriveGenerationPrefs(profile),
		Modifiers:     deriveModifiers(profile),
	}
	return out
}

func deriveConstitutions(profile CompassProfile) []string {
	ids := make([]string, 0, 2)

	switch profile.CareOrientation {
	case "communal", "relational":
		ids = append(ids, "personal.responsibility.balance")
	default:
		ids = append(ids, "personal.growth.creative")
	}

	switch profile.RiskPosture {
	case "cautious":
		ids = append(ids, "personal.balanced.guide")
	case "adventurous":
		if ids[0] != "personal.growth.creative" {
			ids = append(ids, "personal.growth.creative")
		}
	}

	return ids
}

func deriveGenerationPrefs(profile CompassProfile) GenerationPrefs {
	prefs := GenerationPrefs{Style: "conversational", Explanation: "contextual"}

	switch profile.Autonomy {
	case "independent":
		prefs.Style = "concise"
		prefs.Explanation = "minimal"
	case "guided":
		prefs.Style = "thorough"
		prefs.Explanation = "detailed"
	}

	return prefs
}

func deriveModifiers(profile CompassProfile) DimensionalModifiers {
	switch profile.RiskPosture {
	case "cautious":
		return DimensionalModifiers{TrustDefault: 0.4, RuleRigidity: 0.8}
	case "adventurous":
		return DimensionalModifiers{TrustDefault: 0.8, RuleRigidity: 0.4}
	default:
		return DimensionalModifiers{TrustDefault: 0.6, RuleRigidity: 0.6}
	}
}

package vcp

import (
	"strconv"
	"strings"
)

// personaInitials are the display-code initials per persona. Two-letter
// initials disambiguate sentinel/social-adjacent personas.
var personaInitials = map[Persona]string{
	PersonaAmbassador: "A",
	PersonaGodparent:  "G",
	PersonaMuse:       "M",
	PersonaSentinel:   "Se",
	PersonaNanny:      "N",
	PersonaMediator:   "Me",
}

var scopeInitials = map[Scope]string{
	ScopeWork:         "W",
	ScopeEducation:    "E",
	ScopeCreativity:   "C",
	ScopeHealth:       "H",
	ScopePrivacy:      "P",
	ScopeFamily:       "F",
	ScopeFinance:      "Fi",
	ScopeSocial:       "So",
	ScopeLegal:        "L",
	ScopeSafety:       "Sa",
	ScopeStewardship:  "Sw",
	ScopeCommerce:     "Co",
	ScopeCompliance:   "Cm",
	ScopeEthics:       "Et",
	ScopeCoordination: "Cd",
	ScopeTransparency: "Tr",
	ScopeGovernance:   "Go",
	ScopeEpistemic:    "Ep",
	ScopeMediation:    "Md",
	ScopeAccuracy:     "Ac",
}

// ConstitutionCode renders a compact display code for a constitution:
// persona initial, adherence, then one initial per scope, "+"-joined
// (e.g. "A3+W+E"). Unknown parts render as "?".
func ConstitutionCode(c *Constitution) string {
	if c == nil {
		return "??+?"
	}

	persona, ok := personaInitials[c.Persona]
	if !ok {
		persona = "?"
	}

	adherence := "?"
	if c.Adherence >= 1 && c.Adherence <= 5 {
		adherence = strconv.Itoa(c.Adherence)
	}

	if len(c.Scopes) == 0 {
		return persona + adherence + "+?"
	}

	parts := make([]string, 0, len(c.Scopes)+1)
	parts = append(parts, persona+adherence)
	for _, scope := range c.Scopes {
		initial, ok := scopeInitials[scope]
		if !ok {
			initial = "?"
		}
		parts = append(parts, initial)
	}
	return strings.Join(parts, "+")
}

// ConstitutionCodeByID is a convenience wrapper resolving the catalog
// first; unknown ids render as "??+?".
func ConstitutionCodeByID(id string) string {
	c, ok := ConstitutionByID(id)
	if !ok {
		return "??+?"
	}
	return ConstitutionCode(c)
}

package vcp

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Version is the context schema version written into new contexts.
const Version = "1.0.0"

// Persona identifies the behavioral stance a constitution asks an AI to take.
type Persona string

const (
	PersonaMuse       Persona = "muse"
	PersonaAmbassador Persona = "ambassador"
	PersonaGodparent  Persona = "godparent"
	PersonaSentinel   Persona = "sentinel"
	PersonaNanny      Persona = "nanny"
	PersonaMediator   Persona = "mediator"
)

// Scope names a life domain a constitution governs.
type Scope string

const (
	ScopeWork         Scope = "work"
	ScopeEducation    Scope = "education"
	ScopeCreativity   Scope = "creativity"
	ScopeHealth       Scope = "health"
	ScopePrivacy      Scope = "privacy"
	ScopeFamily       Scope = "family"
	ScopeFinance      Scope = "finance"
	ScopeSocial       Scope = "social"
	ScopeLegal        Scope = "legal"
	ScopeSafety       Scope = "safety"
	ScopeStewardship  Scope = "stewardship"
	ScopeCommerce     Scope = "commerce"
	ScopeCompliance   Scope = "compliance"
	ScopeEthics       Scope = "ethics"
	ScopeCoordination Scope = "coordination"
	ScopeTransparency Scope = "transparency"
	ScopeGovernance   Scope = "governance"
	ScopeEpistemic    Scope = "epistemic"
	ScopeMediation    Scope = "mediation"
	ScopeAccuracy     Scope = "accuracy"
)

// Canonical personal state dimension keys.
const (
	DimCognitiveState   = "cognitive_state"
	DimEmotionalTone    = "emotional_tone"
	DimEnergyLevel      = "energy_level"
	DimPerceivedUrgency = "perceived_urgency"
	DimBodySignals      = "body_signals"
)

// DimensionOrder is the canonical iteration order for personal state
// dimensions. Map iteration is randomized; encoding and display must not be.
var DimensionOrder = []string{
	DimCognitiveState,
	DimEmotionalTone,
	DimEnergyLevel,
	DimPerceivedUrgency,
	DimBodySignals,
}

// Lifecycle describes where a declared dimension sits on its decay curve.
type Lifecycle string

const (
	LifecycleSet      Lifecycle = "set"
	LifecycleActive   Lifecycle = "active"
	LifecycleDecaying Lifecycle = "decaying"
	LifecycleStale    Lifecycle = "stale"
	LifecycleExpired  Lifecycle = "expired"
)

// PersonalDimension is one self-declared dimension of how the user is doing
// right now. Intensity is declared on a 1-5 scale and decays over time.
type PersonalDimension struct {
	// Value is the declared state (e.g. "focused", "tense", "depleted")
	Value string `json:"value"`

	// Intensity is the declared strength, 1 (barely) to 5 (completely)
	Intensity int `json:"intensity"`

	// DeclaredAt is an RFC 3339 timestamp of when the user declared this
	DeclaredAt string `json:"declared_at,omitempty"`

	// Extended is an optional free-text qualifier ("after standup", etc.)
	Extended string `json:"extended,omitempty"`

	// Decay overrides the default decay policy for this dimension
	Decay *DecayPolicy `json:"decay,omitempty"`
}

// PersonalState maps dimension keys to their declared values.
type PersonalState map[string]*PersonalDimension

// ConstitutionRef points at a constitution by id and version.
type ConstitutionRef struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// StakeholderSharing captures what one stakeholder type is allowed to see.
type StakeholderSharing struct {
	Fields  []string `json:"fields,omitempty"`
	Summary bool     `json:"summary,omitempty"`
}

// Context is the portable personal context a user carries across AI
// platforms. Public sections travel; private sections influence behavior
// locally but never leave the device.
type Context struct {
	// Version is the context schema version
	Version string `json:"vcp_version"`

	// ProfileID identifies the owning profile ("user-<ulid>")
	ProfileID string `json:"profile_id"`

	// Created and Updated are RFC 3339 timestamps
	Created string `json:"created,omitempty"`
	Updated string `json:"updated,omitempty"`

	// Constitution is the active constitution reference
	Constitution ConstitutionRef `json:"constitution"`

	// PublicProfile holds display_name, goal, experience, role and the like
	PublicProfile map[string]any `json:"public_profile"`

	// PortablePreferences holds cross-platform preferences (style, pace)
	PortablePreferences map[string]any `json:"portable_preferences,omitempty"`

	// CurrentSkills holds self-assessed skill levels
	CurrentSkills map[string]any `json:"current_skills,omitempty"`

	// Constraints are explicit boolean life-circumstance flags
	Constraints map[string]bool `json:"constraints,omitempty"`

	// Availability holds best_times and scheduling hints
	Availability map[string]any `json:"availability,omitempty"`

	// SharingSettings control stakeholder visibility by stakeholder type
	SharingSettings map[string]StakeholderSharing `json:"sharing_settings,omitempty"`

	// PrivateContext never leaves the device; keys ending in _note or
	// _reasoning are free-form and excluded even from category markers
	PrivateContext map[string]any `json:"private_context,omitempty"`

	// PersonalState holds the five decaying self-declared dimensions
	PersonalState PersonalState `json:"personal_state,omitempty"`

	// SystemContext is an ambient situational marker ("workday_morning")
	SystemContext string `json:"system_context,omitempty"`

	// SharedWithManager holds fields the user chose to surface upward
	SharedWithManager map[string]any `json:"shared_with_manager,omitempty"`
}

// PlatformManifest declares what fields a platform asks for.
type PlatformManifest struct {
	PlatformID     string   `json:"platform_id"`
	RequiredFields []string `json:"required_fields,omitempty"`
	OptionalFields []string `json:"optional_fields,omitempty"`
}

// ConsentRecord captures the user's standing decision for one platform.
type ConsentRecord struct {
	PlatformID     string   `json:"platform_id"`
	Granted        bool     `json:"granted"`
	RequiredFields []string `json:"required_fields,omitempty"`
	OptionalShare  []string `json:"optional_share,omitempty"`
	OptionalHide   []string `json:"optional_hide,omitempty"`
	GrantedAt      string   `json:"granted_at,omitempty"`
}

// FilteredContext is the consent-gated projection handed to a platform.
// It carries no private context, personal state, or system context.
type FilteredContext struct {
	Public      map[string]any  `json:"public"`
	Preferences map[string]any  `json:"preferences"`
	Constraints map[string]bool `json:"constraints"`
	Skills      map[string]any  `json:"skills"`
}

// NewProfileID returns a fresh "user-<ulid>" identifier.
func NewProfileID() string {
	return "user-" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Timestamp formats t in the RFC 3339 form used throughout context fields.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp parses an RFC 3339 timestamp. The second return is false
// for empty or malformed input; callers treat that as "not declared".
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a deep copy of the context. Operations return new contexts
// and never mutate their inputs.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.PublicProfile = cloneMap(c.PublicProfile)
	out.PortablePreferences = cloneMap(c.PortablePreferences)
	out.CurrentSkills = cloneMap(c.CurrentSkills)
	out.Availability = cloneMap(c.Availability)
	out.PrivateContext = cloneMap(c.PrivateContext)
	out.SharedWithManager = cloneMap(c.SharedWithManager)
	if c.Constraints != nil {
		out.Constraints = make(map[string]bool, len(c.Constraints))
		for k, v := range c.Constraints {
			out.Constraints[k] = v
		}
	}
	if c.SharingSettings != nil {
		out.SharingSettings = make(map[string]StakeholderSharing, len(c.SharingSettings))
		for k, v := range c.SharingSettings {
			v.Fields = append([]string(nil), v.Fields...)
			out.SharingSettings[k] = v
		}
	}
	if c.PersonalState != nil {
		out.PersonalState = make(PersonalState, len(c.PersonalState))
		for k, dim := range c.PersonalState {
			out.PersonalState[k] = dim.clone()
		}
	}
	return &out
}

func (d *PersonalDimension) clone() *PersonalDimension {
	if d == nil {
		return nil
	}
	out := *d
	if d.Decay != nil {
		decay := *d.Decay
		decay.Steps = append([]DecayStep(nil), d.Decay.Steps...)
		out.Decay = &decay
	}
	return &out
}

// cloneMap deep-copies a free-form section. Values are round-tripped
// through JSON so nested maps and slices detach from the source.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case nil, bool, string, int, int64, float64:
		return val
	default:
		// Uncommon value types: JSON round-trip as a safe deep copy
		data, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var copied any
		if err := json.Unmarshal(data, &copied); err != nil {
			return val
		}
		return copied
	}
}

package vcp

import (
	"time"

	"github.com/hpungsan/vcp/internal/errors"
)

// DefaultConstitutionID is the constitution assigned to new contexts.
const DefaultConstitutionID = "personal.growth.creative"

// NewContextOptions seeds a fresh context.
type NewContextOptions struct {
	// ProfileID is used as-is when set; otherwise a ULID-based id is generated.
	ProfileID string

	// DisplayName, Goal and Experience seed the public profile.
	DisplayName string
	Goal        string
	Experience  string
}

// NewContext creates a fresh context with the default constitution and
// empty sections. Created and Updated are identical at creation time.
func NewContext(opts NewContextOptions, now time.Time) *Context {
	profileID := opts.ProfileID
	if profileID == "" {
		profileID = NewProfileID()
	}

	public := map[string]any{}
	if opts.DisplayName != "" {
		public["display_name"] = opts.DisplayName
	}
	if opts.Goal != "" {
		public["goal"] = opts.Goal
	}
	if opts.Experience != "" {
		public["experience"] = opts.Experience
	}

	ts := Timestamp(now)
	return &Context{
		Version:   Version,
		ProfileID: profileID,
		Created:   ts,
		Updated:   ts,
		Constitution: ConstitutionRef{
			ID:      DefaultConstitutionID,
			Version: "1.0.0",
		},
		PublicProfile:       public,
		PortablePreferences: map[string]any{},
		CurrentSkills:       map[string]any{},
		Constraints:         map[string]bool{},
		Availability:        map[string]any{},
		PrivateContext:      map[string]any{},
		PersonalState:       PersonalState{},
	}
}

// Merge combines a patch into a base context and returns a new context.
// public_profile, portable_preferences and constraints deep-merge key by
// key; any other section present in the patch replaces the base section
// wholesale. Neither input is mutated.
func Merge(base, patch *Context, now time.Time) *Context {
	out := base.Clone()
	if patch == nil {
		return out
	}

	if patch.PublicProfile != nil {
		out.PublicProfile = mergeSection(out.PublicProfile, patch.PublicProfile)
	}
	if patch.PortablePreferences != nil {
		out.PortablePreferences = mergeSection(out.PortablePreferences, patch.PortablePreferences)
	}
	if patch.Constraints != nil {
		if out.Constraints == nil {
			out.Constraints = map[string]bool{}
		}
		for k, v := range patch.Constraints {
			out.Constraints[k] = v
		}
	}

	// Replace-wholesale sections
	if patch.CurrentSkills != nil {
		out.CurrentSkills = cloneMap(patch.CurrentSkills)
	}
	if patch.Availability != nil {
		out.Availability = cloneMap(patch.Availability)
	}
	if patch.SharingSettings != nil {
		out.SharingSettings = patch.Clone().SharingSettings
	}
	if patch.PrivateContext != nil {
		out.PrivateContext = cloneMap(patch.PrivateContext)
	}
	if patch.PersonalState != nil {
		out.PersonalState = patch.Clone().PersonalState
	}
	if patch.SharedWithManager != nil {
		out.SharedWithManager = cloneMap(patch.SharedWithManager)
	}
	if patch.Constitution.ID != "" {
		out.Constitution = patch.Constitution
	}
	if patch.SystemContext != "" {
		out.SystemContext = patch.SystemContext
	}

	out.Updated = Timestamp(now)
	return out
}

// mergeSection overlays patch keys onto a copy of base, merging nested
// maps one level at a time.
func mergeSection(base, patch map[string]any) map[string]any {
	out := cloneMap(base)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range patch {
		existing, hasExisting := out[k]
		patchMap, patchIsMap := v.(map[string]any)
		baseMap, baseIsMap := existing.(map[string]any)
		if hasExisting && patchIsMap && baseIsMap {
			out[k] = mergeSection(baseMap, patchMap)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Section names accepted by UpdateField.
const (
	SectionPublicProfile       = "public_profile"
	SectionPortablePreferences = "portable_preferences"
	SectionCurrentSkills       = "current_skills"
	SectionConstraints         = "constraints"
	SectionAvailability        = "availability"
	SectionPrivateContext      = "private_context"
	SectionPersonalState       = "personal_state"
	SectionSystemContext       = "system_context"
	SectionSharedWithManager   = "shared_with_manager"
)

// UpdateField replaces a single section of the context and returns a new
// context. Personal state dimensions missing a declared_at are stamped
// with now.
func UpdateField(base *Context, section string, value any, now time.Time) (*Context, error) {
	out := base.Clone()

	switch section {
	case SectionPublicProfile, SectionPortablePreferences, SectionCurrentSkills,
		SectionAvailability, SectionPrivateContext, SectionSharedWithManager:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, errors.NewInvalidRequest(section + " must be an object")
		}
		cloned := cloneMap(m)
		switch section {
		case SectionPublicProfile:
			out.PublicProfile = cloned
		case SectionPortablePreferences:
			out.PortablePreferences = cloned
		case SectionCurrentSkills:
			out.CurrentSkills = cloned
		case SectionAvailability:
			out.Availability = cloned
		case SectionPrivateContext:
			out.PrivateContext = cloned
		case SectionSharedWithManager:
			out.SharedWithManager = cloned
		}

	case SectionConstraints:
		flags, err := coerceConstraints(value)
		if err != nil {
			return nil, err
		}
		out.Constraints = flags

	case SectionPersonalState:
		state, err := coercePersonalState(value)
		if err != nil {
			return nil, err
		}
		for _, dim := range state {
			if dim != nil && dim.DeclaredAt == "" {
				dim.DeclaredAt = Timestamp(now)
			}
		}
		out.PersonalState = state

	case SectionSystemContext:
		s, ok := value.(string)
		if !ok {
			return nil, errors.NewInvalidRequest("system_context must be a string")
		}
		out.SystemContext = s

	default:
		return nil, errors.NewInvalidRequest("unknown section: " + section)
	}

	out.Updated = Timestamp(now)
	return out, nil
}

func coerceConstraints(value any) (map[string]bool, error) {
	switch v := value.(type) {
	case map[string]bool:
		out := make(map[string]bool, len(v))
		for k, b := range v {
			out[k] = b
		}
		return out, nil
	case map[string]any:
		out := make(map[string]bool, len(v))
		for k, raw := range v {
			b, ok := raw.(bool)
			if !ok {
				return nil, errors.NewInvalidRequest("constraint " + k + " must be a boolean")
			}
			out[k] = b
		}
		return out, nil
	default:
		return nil, errors.NewInvalidRequest("constraints must be an object of booleans")
	}
}

func coercePersonalState(value any) (PersonalState, error) {
	switch v := value.(type) {
	case PersonalState:
		out := make(PersonalState, len(v))
		for k, dim := range v {
			out[k] = dim.clone()
		}
		return out, nil
	case map[string]*PersonalDimension:
		out := make(PersonalState, len(v))
		for k, dim := range v {
			out[k] = dim.clone()
		}
		return out, nil
	default:
		return nil, errors.NewInvalidRequest("personal_state must map dimensions to declarations")
	}
}

// RefreshEngagementDecay re-stamps declared_at for dimensions whose policy
// has reset_on_engagement, but only when the dimension already carries a
// declared_at. Returns a new context; when nothing qualifies the result is
// an unchanged copy (Updated untouched).
func RefreshEngagementDecay(base *Context, now time.Time) *Context {
	out := base.Clone()

	touched := false
	for key, dim := range out.PersonalState {
		if dim == nil || dim.DeclaredAt == "" {
			continue
		}
		if !policyFor(key, dim).ResetOnEngagement {
			continue
		}
		dim.DeclaredAt = Timestamp(now)
		touched = true
	}

	if touched {
		out.Updated = Timestamp(now)
	}
	return out
}

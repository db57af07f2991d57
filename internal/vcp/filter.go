package vcp

import (
	"sort"
	"strings"

	"github.com/hpungsan/vcp/internal/errors"
)

// alwaysShared are the public profile fields every platform receives.
var alwaysShared = []string{"display_name", "goal", "experience"}

// fieldSection names where a requested field was resolved from.
type fieldSection int

const (
	sectionNone fieldSection = iota
	sectionPublic
	sectionPreferences
	sectionSkills
	sectionAvailability
	sectionManager
	sectionConstraint
)

// resolveField looks a field up across shareable sections in fixed order:
// public_profile, portable_preferences, current_skills, availability,
// shared_with_manager, constraints. Private context is never consulted.
func resolveField(ctx *Context, field string) (any, fieldSection) {
	if v, ok := ctx.PublicProfile[field]; ok && v != nil {
		return v, sectionPublic
	}
	if v, ok := ctx.PortablePreferences[field]; ok && v != nil {
		return v, sectionPreferences
	}
	if v, ok := ctx.CurrentSkills[field]; ok && v != nil {
		return v, sectionSkills
	}
	if v, ok := ctx.Availability[field]; ok && v != nil {
		return v, sectionAvailability
	}
	if v, ok := ctx.SharedWithManager[field]; ok && v != nil {
		return v, sectionManager
	}
	if v, ok := ctx.Constraints[field]; ok {
		return v, sectionConstraint
	}
	return nil, sectionNone
}

// derivedFlagSources maps each outward constraint flag to the private
// context key whose truth implies it.
var derivedFlagSources = map[string]string{
	"time_limited":       "schedule_irregular",
	"budget_limited":     "financial_constraint",
	"noise_restricted":   "noise_sensitive",
	"energy_variable":    "energy_variable",
	"schedule_irregular": "schedule_irregular",
	"mobility_limited":   "mobility_limited",
}

// DerivedConstraints builds the full outward-facing constraint map.
// Explicit flags carry over as-is; flags left unset fall back to booleans
// inferred from private context, or to the presence of health conditions.
// An explicit value, including false, always wins over an inference.
func DerivedConstraints(ctx *Context) map[string]bool {
	out := make(map[string]bool, len(ctx.Constraints)+len(derivedFlagSources)+1)
	for k, v := range ctx.Constraints {
		out[k] = v
	}

	resolve := func(flag string, implied bool) {
		if explicit, ok := ctx.Constraints[flag]; ok {
			out[flag] = explicit
			return
		}
		out[flag] = implied
	}

	for flag, source := range derivedFlagSources {
		set, _ := ctx.PrivateContext[source].(bool)
		resolve(flag, set)
	}
	resolve("health_considerations", hasHealthConditions(ctx.PrivateContext))

	return out
}

func hasHealthConditions(private map[string]any) bool {
	switch v := private["health_conditions"].(type) {
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case nil:
		return false
	default:
		return true
	}
}

// FilterForPlatform produces the consent-gated projection of the context
// for one platform. Only fields the user consented to, plus the
// always-shared public trio and the derived constraint map, survive.
// Private context, personal state and system context never appear.
func FilterForPlatform(ctx *Context, manifest PlatformManifest, consent *ConsentRecord) (*FilteredContext, error) {
	if consent == nil || !consent.Granted {
		return nil, errors.NewConsentRequired(manifest.PlatformID)
	}

	out := &FilteredContext{
		Public:      map[string]any{},
		Preferences: map[string]any{},
		Constraints: DerivedConstraints(ctx),
		Skills:      map[string]any{},
	}

	for _, field := range alwaysShared {
		if v, ok := ctx.PublicProfile[field]; ok && v != nil {
			out.Public[field] = cloneValue(v)
		}
	}

	consented := make(map[string]bool, len(consent.RequiredFields))
	for _, field := range consent.RequiredFields {
		consented[field] = true
	}

	include := func(field string) {
		v, section := resolveField(ctx, field)
		switch section {
		case sectionPublic, sectionManager:
			out.Public[field] = cloneValue(v)
		case sectionPreferences, sectionAvailability:
			out.Preferences[field] = cloneValue(v)
		case sectionSkills:
			out.Skills[field] = cloneValue(v)
		case sectionConstraint:
			// Already present in the derived constraint map
		}
	}

	for _, field := range manifest.RequiredFields {
		if consented[field] {
			include(field)
		}
	}

	optedIn := make(map[string]bool, len(consent.OptionalShare))
	for _, field := range consent.OptionalShare {
		optedIn[field] = true
	}
	for _, field := range manifest.OptionalFields {
		if optedIn[field] {
			include(field)
		}
	}

	return out, nil
}

// SharePreviewResult shows the user what a platform would and would not
// receive before any consent is recorded.
type SharePreviewResult struct {
	PlatformID    string   `json:"platform_id"`
	WouldShare    []string `json:"would_share"`
	WouldWithhold []string `json:"would_withhold"`
}

// SharePreview computes the share/withhold field lists for a manifest.
// Required fields share unless hidden; optional fields share only when
// explicitly opted in; private context keys (except _note) always show as
// withheld.
func SharePreview(ctx *Context, manifest PlatformManifest, consent *ConsentRecord) SharePreviewResult {
	result := SharePreviewResult{
		PlatformID:    manifest.PlatformID,
		WouldShare:    append([]string(nil), alwaysShared...),
		WouldWithhold: make([]string, 0),
	}

	hidden := make(map[string]bool)
	optedIn := make(map[string]bool)
	if consent != nil {
		for _, field := range consent.OptionalHide {
			hidden[field] = true
		}
		for _, field := range consent.OptionalShare {
			optedIn[field] = true
		}
	}

	seen := make(map[string]bool, len(result.WouldShare))
	for _, field := range result.WouldShare {
		seen[field] = true
	}

	for _, field := range manifest.RequiredFields {
		if seen[field] {
			continue
		}
		seen[field] = true
		if hidden[field] {
			result.WouldWithhold = append(result.WouldWithhold, field)
			continue
		}
		result.WouldShare = append(result.WouldShare, field)
	}

	for _, field := range manifest.OptionalFields {
		if seen[field] {
			continue
		}
		seen[field] = true
		if optedIn[field] {
			result.WouldShare = append(result.WouldShare, field)
			continue
		}
		result.WouldWithhold = append(result.WouldWithhold, field)
	}

	for _, key := range sortedKeys(ctx.PrivateContext) {
		if strings.HasSuffix(key, "_note") {
			continue
		}
		result.WouldWithhold = append(result.WouldWithhold, key)
	}

	return result
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SharedFieldNames lists every field name present in a filtered projection,
// sorted for stable audit entries.
func SharedFieldNames(filtered *FilteredContext) []string {
	fields := make([]string, 0)
	for _, m := range []map[string]any{filtered.Public, filtered.Preferences, filtered.Skills} {
		for k := range m {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

// WithheldFieldNames lists the private context keys that never transmit,
// sorted for stable audit entries.
func WithheldFieldNames(ctx *Context) []string {
	keys := make([]string, 0, len(ctx.PrivateContext))
	for k := range ctx.PrivateContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InferredConstraintCount counts constraint flags that were derived from
// context rather than set explicitly.
func InferredConstraintCount(ctx *Context) int {
	derived := DerivedConstraints(ctx)
	count := 0
	for flag, set := range derived {
		if !set {
			continue
		}
		if _, explicit := ctx.Constraints[flag]; !explicit {
			count++
		}
	}
	return count
}

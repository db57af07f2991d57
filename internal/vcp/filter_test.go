package vcp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/vcp/internal/errors"
)

func filterTestContext() *Context {
	ctx := NewContext(NewContextOptions{
		DisplayName: "Ada",
		Goal:        "learn cello",
		Experience:  "beginner",
	}, testNow)
	ctx.PublicProfile["role"] = "nurse"
	ctx.PortablePreferences = map[string]any{"learning_style": "visual"}
	ctx.CurrentSkills = map[string]any{"bowing": "novice"}
	ctx.Availability = map[string]any{"best_times": []any{"evening"}}
	ctx.Constraints = map[string]bool{"time_limited": true}
	ctx.PrivateContext = map[string]any{
		"health_condition": "insomnia",
		"finance_debt":     "consolidating",
		"therapy_note":     "free-form text",
	}
	ctx.PersonalState = PersonalState{
		DimEmotionalTone: {Value: "tense", Intensity: 4, DeclaredAt: Timestamp(testNow)},
	}
	ctx.SystemContext = "workday_morning"
	return ctx
}

func grantedConsent(platformID string, required ...string) *ConsentRecord {
	return &ConsentRecord{
		PlatformID:     platformID,
		Granted:        true,
		RequiredFields: required,
		GrantedAt:      Timestamp(testNow),
	}
}

func TestFilterForPlatform_RequiresConsent(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{PlatformID: "cellotutor"}

	_, err := FilterForPlatform(ctx, manifest, nil)
	require.True(t, errors.Is(err, errors.ErrConsentRequired))

	_, err = FilterForPlatform(ctx, manifest, &ConsentRecord{PlatformID: "cellotutor", Granted: false})
	require.True(t, errors.Is(err, errors.ErrConsentRequired))
}

func TestFilterForPlatform_AlwaysSharedTrio(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{PlatformID: "cellotutor"}

	filtered, err := FilterForPlatform(ctx, manifest, grantedConsent("cellotutor"))
	require.NoError(t, err)

	require.Equal(t, "Ada", filtered.Public["display_name"])
	require.Equal(t, "learn cello", filtered.Public["goal"])
	require.Equal(t, "beginner", filtered.Public["experience"])
}

func TestFilterForPlatform_RequiredFieldsGatedByConsent(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{
		PlatformID:     "cellotutor",
		RequiredFields: []string{"learning_style", "role", "bowing"},
	}

	// Consent covers learning_style and bowing only
	filtered, err := FilterForPlatform(ctx, manifest, grantedConsent("cellotutor", "learning_style", "bowing"))
	require.NoError(t, err)

	require.Equal(t, "visual", filtered.Preferences["learning_style"])
	require.Equal(t, "novice", filtered.Skills["bowing"])
	require.NotContains(t, filtered.Public, "role")
}

func TestFilterForPlatform_RequiredFieldWithoutValue(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{
		PlatformID:     "cellotutor",
		RequiredFields: []string{"shoe_size"},
	}

	filtered, err := FilterForPlatform(ctx, manifest, grantedConsent("cellotutor", "shoe_size"))
	require.NoError(t, err)

	require.NotContains(t, filtered.Public, "shoe_size")
	require.NotContains(t, filtered.Preferences, "shoe_size")
	require.NotContains(t, filtered.Skills, "shoe_size")
}

func TestFilterForPlatform_PrivateNeverResolves(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{
		PlatformID:     "cellotutor",
		RequiredFields: []string{"health_condition"},
	}

	// Even with consent naming the field, private context is not a source
	filtered, err := FilterForPlatform(ctx, manifest, grantedConsent("cellotutor", "health_condition"))
	require.NoError(t, err)

	require.NotContains(t, filtered.Public, "health_condition")
	require.NotContains(t, filtered.Preferences, "health_condition")
	require.NotContains(t, filtered.Skills, "health_condition")
}

func TestFilterForPlatform_OptionalFieldsNeedOptIn(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{
		PlatformID:     "cellotutor",
		OptionalFields: []string{"learning_style", "role"},
	}

	consent := grantedConsent("cellotutor")
	consent.OptionalShare = []string{"learning_style"}

	filtered, err := FilterForPlatform(ctx, manifest, consent)
	require.NoError(t, err)

	require.Equal(t, "visual", filtered.Preferences["learning_style"])
	require.NotContains(t, filtered.Public, "role")
}

func TestDerivedConstraints_FromPrivateContext(t *testing.T) {
	ctx := NewContext(NewContextOptions{}, testNow)
	ctx.PrivateContext = map[string]any{
		"schedule_irregular":   true,
		"financial_constraint": true,
		"noise_sensitive":      true,
		"energy_variable":      true,
		"mobility_limited":     true,
		"health_conditions":    "chronic pain",
	}

	derived := DerivedConstraints(ctx)
	require.True(t, derived["time_limited"], "schedule_irregular implies time_limited")
	require.True(t, derived["schedule_irregular"])
	require.True(t, derived["budget_limited"], "financial_constraint implies budget_limited")
	require.True(t, derived["noise_restricted"], "noise_sensitive implies noise_restricted")
	require.True(t, derived["energy_variable"])
	require.True(t, derived["mobility_limited"])
	require.True(t, derived["health_considerations"])
}

func TestDerivedConstraints_ExplicitWins(t *testing.T) {
	ctx := NewContext(NewContextOptions{}, testNow)
	ctx.Constraints = map[string]bool{"time_limited": false}
	ctx.PrivateContext = map[string]any{"schedule_irregular": true}

	derived := DerivedConstraints(ctx)
	require.False(t, derived["time_limited"], "explicit false must beat inference")
	require.True(t, derived["schedule_irregular"], "other flags still infer")
}

func TestDerivedConstraints_EmptySources(t *testing.T) {
	ctx := NewContext(NewContextOptions{}, testNow)

	derived := DerivedConstraints(ctx)
	require.False(t, derived["time_limited"])
	require.False(t, derived["budget_limited"])
	require.False(t, derived["noise_restricted"])
	require.False(t, derived["energy_variable"])
	require.False(t, derived["health_considerations"])
}

func TestDerivedConstraints_HealthConditions(t *testing.T) {
	ctx := NewContext(NewContextOptions{}, testNow)
	ctx.PrivateContext = map[string]any{"health_conditions": []any{"tinnitus"}}

	derived := DerivedConstraints(ctx)
	require.True(t, derived["health_considerations"])

	// An empty list or empty string does not imply the flag
	ctx.PrivateContext["health_conditions"] = []any{}
	derived = DerivedConstraints(ctx)
	require.False(t, derived["health_considerations"])

	ctx.PrivateContext["health_conditions"] = ""
	derived = DerivedConstraints(ctx)
	require.False(t, derived["health_considerations"])
}

func TestSharePreview(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{
		PlatformID:     "cellotutor",
		RequiredFields: []string{"learning_style", "role"},
		OptionalFields: []string{"bowing", "best_times"},
	}
	consent := grantedConsent("cellotutor")
	consent.OptionalShare = []string{"bowing"}
	consent.OptionalHide = []string{"role"}

	preview := SharePreview(ctx, manifest, consent)

	require.Equal(t, "cellotutor", preview.PlatformID)

	// Always-shared trio leads the share list
	require.Contains(t, preview.WouldShare, "display_name")
	require.Contains(t, preview.WouldShare, "goal")
	require.Contains(t, preview.WouldShare, "experience")

	// Required shares unless hidden; optional shares only when opted in
	require.Contains(t, preview.WouldShare, "learning_style")
	require.Contains(t, preview.WouldWithhold, "role")
	require.Contains(t, preview.WouldShare, "bowing")
	require.Contains(t, preview.WouldWithhold, "best_times")

	// Private keys show as withheld, except free-form notes
	require.Contains(t, preview.WouldWithhold, "health_condition")
	require.Contains(t, preview.WouldWithhold, "finance_debt")
	require.NotContains(t, preview.WouldWithhold, "therapy_note")
	require.NotContains(t, preview.WouldShare, "therapy_note")
}

func TestSharePreview_NoConsent(t *testing.T) {
	ctx := filterTestContext()
	manifest := PlatformManifest{
		PlatformID:     "cellotutor",
		RequiredFields: []string{"learning_style"},
		OptionalFields: []string{"bowing"},
	}

	preview := SharePreview(ctx, manifest, nil)

	// Without consent decisions: required would share, optional withheld
	require.Contains(t, preview.WouldShare, "learning_style")
	require.Contains(t, preview.WouldWithhold, "bowing")
}

func TestSharedFieldNames_SortedAcrossSections(t *testing.T) {
	filtered := &FilteredContext{
		Public:      map[string]any{"goal": "learn cello", "display_name": "Ada"},
		Preferences: map[string]any{"learning_style": "visual"},
		Skills:      map[string]any{"bowing": "novice"},
	}

	require.Equal(t,
		[]string{"bowing", "display_name", "goal", "learning_style"},
		SharedFieldNames(filtered))
}

func TestWithheldFieldNames(t *testing.T) {
	ctx := filterTestContext()

	require.Equal(t,
		[]string{"finance_debt", "health_condition", "therapy_note"},
		WithheldFieldNames(ctx))
}

func TestInferredConstraintCount(t *testing.T) {
	ctx := filterTestContext()
	ctx.PrivateContext["noise_sensitive"] = true

	// noise_sensitive infers noise_restricted, which is not declared
	// explicitly; time_limited is explicit and does not count.
	require.Equal(t, 1, InferredConstraintCount(ctx))

	ctx.PrivateContext["health_conditions"] = []any{"migraine"}
	require.Equal(t, 2, InferredConstraintCount(ctx))
}

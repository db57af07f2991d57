package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vcp/internal/config"
	"github.com/hpungsan/vcp/internal/db"
	"github.com/hpungsan/vcp/internal/errors"
	"github.com/hpungsan/vcp/internal/store"
)

var mcpNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// testSetup creates a temporary database-backed store and handlers with a
// fixed clock.
func testSetup(t *testing.T) (*Handlers, func()) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	st := store.Open(database)
	h := NewHandlers(st, config.DefaultConfig())
	h.now = func() time.Time { return mcpNow }

	cleanup := func() {
		database.Close()
	}
	return h, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// seedContext creates a context for profileID with a realistic shape.
func seedContext(t *testing.T, h *Handlers, profileID string) {
	t.Helper()

	req := makeRequest(map[string]any{
		"profile_id": profileID,
		"patch": map[string]any{
			"public_profile": map[string]any{
				"display_name": "Ada",
				"goal":         "learn cello",
				"experience":   "beginner",
				"role":         "support_specialist",
			},
			"portable_preferences": map[string]any{
				"learning_style": "visual",
			},
			"private_context": map[string]any{
				"health_note":       "migraine cluster this week",
				"health_conditions": []any{"migraine"},
				"noise_sensitive":   true,
			},
			"personal_state": map[string]any{
				"cognitive_state": map[string]any{
					"value":       "focused",
					"intensity":   4,
					"declared_at": mcpNow.Format(time.RFC3339),
				},
			},
		},
	})
	result, err := h.HandleMergeContext(context.Background(), req)
	if err != nil {
		t.Fatalf("seed merge handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("seed merge failed: %v", extractErrorMessage(result))
	}
}

func TestHandleMergeContext_CreatesOnUnknownProfile(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	req := makeRequest(map[string]any{
		"profile_id": "user-merge-create",
		"patch": map[string]any{
			"public_profile": map[string]any{"display_name": "Ada"},
		},
	})
	result, err := h.HandleMergeContext(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["profile_id"] != "user-merge-create" {
		t.Errorf("profile_id = %v, want user-merge-create", output["profile_id"])
	}
	constitution := output["constitution"].(map[string]any)
	if constitution["id"] != "personal.growth.creative" {
		t.Errorf("new context constitution = %v, want default", constitution["id"])
	}

	// The created context must now be readable.
	getReq := makeRequest(map[string]any{"profile_id": "user-merge-create"})
	getResult, err := h.HandleGetContext(ctx, getReq)
	if err != nil {
		t.Fatalf("get handler returned error: %v", err)
	}
	if getResult.IsError {
		t.Fatalf("created context not found: %v", extractErrorMessage(getResult))
	}
}

func TestHandleMergeContext_DeepMerges(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-merge-deep")

	req := makeRequest(map[string]any{
		"profile_id": "user-merge-deep",
		"patch": map[string]any{
			"public_profile": map[string]any{"experience": "intermediate"},
		},
	})
	result, err := h.HandleMergeContext(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	public := output["public_profile"].(map[string]any)
	if public["experience"] != "intermediate" {
		t.Errorf("experience = %v, want intermediate", public["experience"])
	}
	if public["display_name"] != "Ada" {
		t.Errorf("display_name = %v, want Ada (deep merge keeps siblings)", public["display_name"])
	}
}

func TestHandleMergeContext_MissingPatch(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	req := makeRequest(map[string]any{"profile_id": "user-no-patch"})
	result, err := h.HandleMergeContext(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing patch")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleMergeContext_TooLarge(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	h.cfg = &config.Config{ContextMaxChars: 200}

	req := makeRequest(map[string]any{
		"profile_id": "user-too-large",
		"patch": map[string]any{
			"public_profile": map[string]any{
				"goal": fmt.Sprintf("%0200d", 0),
			},
		},
	})
	result, err := h.HandleMergeContext(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for oversized context")
	}
	assertErrorCode(t, result, "CONTEXT_TOO_LARGE")
}

func TestHandleGetContext(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-get")

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "existing profile",
			args: map[string]any{"profile_id": "user-get"},
		},
		{
			name:      "unknown profile",
			args:      map[string]any{"profile_id": "user-missing"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleGetContext(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Error("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleGetContext_Effective(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	seedContext(t, h, "user-effective")

	req := makeRequest(map[string]any{"profile_id": "user-effective", "effective": true})
	result, err := h.HandleGetContext(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["context"] == nil {
		t.Error("effective response should carry the context")
	}
	effective, ok := output["effective_state"].(map[string]any)
	if !ok {
		t.Fatal("effective response should carry effective_state")
	}
	dim, ok := effective["cognitive_state"].(map[string]any)
	if !ok {
		t.Fatal("effective_state should include cognitive_state")
	}
	if dim["value"] != "focused" {
		t.Errorf("effective value = %v, want focused", dim["value"])
	}
}

func TestHandleUpdateField(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-update")

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "update system context",
			args: map[string]any{
				"profile_id": "user-update",
				"section":    "system_context",
				"value":      "workday_morning",
			},
		},
		{
			name: "update personal state",
			args: map[string]any{
				"profile_id": "user-update",
				"section":    "personal_state",
				"value": map[string]any{
					"emotional_tone": map[string]any{"value": "calm", "intensity": 2},
				},
			},
		},
		{
			name: "unknown section",
			args: map[string]any{
				"profile_id": "user-update",
				"section":    "no_such_section",
				"value":      "x",
			},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name: "unknown profile",
			args: map[string]any{
				"profile_id": "user-missing",
				"section":    "system_context",
				"value":      "x",
			},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleUpdateField(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Error("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleUpdateField_StampsDeclaredAt(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	seedContext(t, h, "user-stamp")

	req := makeRequest(map[string]any{
		"profile_id": "user-stamp",
		"section":    "personal_state",
		"value": map[string]any{
			"energy_level": map[string]any{"value": "steady", "intensity": 3},
		},
	})
	result, err := h.HandleUpdateField(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	state := output["personal_state"].(map[string]any)
	dim := state["energy_level"].(map[string]any)
	if dim["declared_at"] != mcpNow.Format(time.RFC3339) {
		t.Errorf("declared_at = %v, want handler clock", dim["declared_at"])
	}
}

func TestHandleEncodeToken(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-token")

	req := makeRequest(map[string]any{"profile_id": "user-token", "display": true})
	result, err := h.HandleEncodeToken(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	lines := output["lines"].([]any)
	if len(lines) == 0 {
		t.Fatal("expected token lines")
	}
	if lines[0].(string) != "VCP:1.0.0:user-token" {
		t.Errorf("header = %v", lines[0])
	}
	wire, _ := output["wire"].(string)
	if wire == "" {
		t.Error("expected wire format")
	}
	if _, ok := output["display"].(string); !ok {
		t.Error("display:true should include the boxed rendering")
	}

	summary := output["summary"].(map[string]any)
	withheld := summary["withheld"].([]any)
	if len(withheld) == 0 {
		t.Error("private health note should be reported as withheld")
	}

	// Without display the rendering is omitted.
	result2, err := h.HandleEncodeToken(ctx, makeRequest(map[string]any{"profile_id": "user-token"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output2 := parseOutput(t, result2)
	if _, ok := output2["display"]; ok {
		t.Error("display should be omitted by default")
	}
}

func TestHandleSharePreview(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	seedContext(t, h, "user-preview")

	req := makeRequest(map[string]any{
		"profile_id":  "user-preview",
		"platform_id": "musicmaster",
		"required":    []any{"learning_style"},
	})
	result, err := h.HandleSharePreview(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["platform_id"] != "musicmaster" {
		t.Errorf("platform_id = %v", output["platform_id"])
	}
	share := output["would_share"].([]any)
	found := false
	for _, f := range share {
		if f == "display_name" {
			found = true
		}
	}
	if !found {
		t.Error("would_share should include the always-shared trio")
	}
}

func TestHandleFilterContext_ConsentGate(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-filter")

	filterReq := makeRequest(map[string]any{
		"profile_id":  "user-filter",
		"platform_id": "musicmaster",
		"required":    []any{"learning_style"},
	})

	// No consent recorded yet.
	result, err := h.HandleFilterContext(ctx, filterReq)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected consent gate to reject the filter")
	}
	assertErrorCode(t, result, "CONSENT_REQUIRED")

	// Grant and retry.
	grantReq := makeRequest(map[string]any{
		"profile_id":      "user-filter",
		"platform_id":     "musicmaster",
		"granted":         true,
		"required_fields": []any{"learning_style"},
	})
	grantResult, err := h.HandleGrantConsent(ctx, grantReq)
	if err != nil {
		t.Fatalf("grant handler returned error: %v", err)
	}
	if grantResult.IsError {
		t.Fatalf("grant failed: %v", extractErrorMessage(grantResult))
	}

	result, err = h.HandleFilterContext(ctx, filterReq)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	prefs := output["preferences"].(map[string]any)
	if prefs["learning_style"] != "visual" {
		t.Errorf("learning_style = %v, want visual", prefs["learning_style"])
	}
	if _, ok := output["private_context"]; ok {
		t.Error("filtered context must not carry private_context")
	}
	constraints := output["constraints"].(map[string]any)
	if constraints["noise_restricted"] != true {
		t.Error("derived noise_restricted flag should be present")
	}

	// Revoke closes the gate again.
	revokeReq := makeRequest(map[string]any{
		"profile_id":  "user-filter",
		"platform_id": "musicmaster",
		"granted":     false,
	})
	if _, err := h.HandleGrantConsent(ctx, revokeReq); err != nil {
		t.Fatalf("revoke handler returned error: %v", err)
	}
	result, err = h.HandleFilterContext(ctx, filterReq)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected filter to fail after revocation")
	}
	assertErrorCode(t, result, "CONSENT_REQUIRED")
}

func TestHandleFilterContext_LogsAudit(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-audit-share")

	grantReq := makeRequest(map[string]any{
		"profile_id":      "user-audit-share",
		"platform_id":     "musicmaster",
		"granted":         true,
		"required_fields": []any{"learning_style"},
	})
	if _, err := h.HandleGrantConsent(ctx, grantReq); err != nil {
		t.Fatalf("grant handler returned error: %v", err)
	}

	filterReq := makeRequest(map[string]any{
		"profile_id":  "user-audit-share",
		"platform_id": "musicmaster",
		"required":    []any{"learning_style"},
	})
	result, err := h.HandleFilterContext(ctx, filterReq)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("filter failed: %v", extractErrorMessage(result))
	}

	logReq := makeRequest(map[string]any{
		"profile_id": "user-audit-share",
		"event_type": "context_shared",
	})
	logResult, err := h.HandleAuditLog(ctx, logReq)
	if err != nil {
		t.Fatalf("audit handler returned error: %v", err)
	}
	logOutput := parseOutput(t, logResult)

	entries := logOutput["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("got %d context_shared entries, want 1", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["platform_id"] != "musicmaster" {
		t.Errorf("platform_id = %v", entry["platform_id"])
	}
	if entry["private_fields_exposed"].(float64) != 0 {
		t.Error("private_fields_exposed must be zero")
	}
	withheld := entry["data_withheld"].([]any)
	if len(withheld) != 3 || withheld[0] != "health_conditions" || withheld[1] != "health_note" || withheld[2] != "noise_sensitive" {
		t.Errorf("data_withheld = %v, want [health_conditions health_note noise_sensitive]", withheld)
	}
}

func TestHandleGrantConsent_RequiresPlatform(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	req := makeRequest(map[string]any{"profile_id": "user-x", "granted": true})
	result, err := h.HandleGrantConsent(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing platform_id")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleClassifyIntent(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-intent")

	result, err := h.HandleClassifyIntent(ctx, makeRequest(map[string]any{"profile_id": "user-intent"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	primary := output["primary"].(map[string]any)
	// focused + role in the public profile reads as a professional inquiry
	if primary["category"] != "professional_inquiry" {
		t.Errorf("primary = %v, want professional_inquiry", primary["category"])
	}

	missing, err := h.HandleClassifyIntent(ctx, makeRequest(map[string]any{"profile_id": "user-missing"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !missing.IsError {
		t.Fatal("expected NOT_FOUND for unknown profile")
	}
	assertErrorCode(t, missing, "NOT_FOUND")
}

func TestHandleDetectTransition(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-transition")

	req := makeRequest(map[string]any{
		"profile_id": "user-transition",
		"patch": map[string]any{
			"personal_state": map[string]any{
				"cognitive_state": map[string]any{"value": "scattered", "intensity": 4},
			},
		},
	})
	result, err := h.HandleDetectTransition(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	transition := output["transition"].(map[string]any)
	if transition["severity"] != "minor" {
		t.Errorf("severity = %v, want minor", transition["severity"])
	}
	if output["applied"] != false {
		t.Error("applied should default to false")
	}

	// Without apply the stored context is untouched.
	getResult, err := h.HandleGetContext(ctx, makeRequest(map[string]any{"profile_id": "user-transition"}))
	if err != nil {
		t.Fatalf("get handler returned error: %v", err)
	}
	getOutput := parseOutput(t, getResult)
	state := getOutput["personal_state"].(map[string]any)
	dim := state["cognitive_state"].(map[string]any)
	if dim["value"] != "focused" {
		t.Errorf("stored value = %v, want focused (nothing applied)", dim["value"])
	}
}

func TestHandleDetectTransition_Apply(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-transition-apply")

	req := makeRequest(map[string]any{
		"profile_id": "user-transition-apply",
		"apply":      true,
		"patch": map[string]any{
			"personal_state": map[string]any{
				"cognitive_state": map[string]any{"value": "scattered", "intensity": 4},
			},
		},
	})
	result, err := h.HandleDetectTransition(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["applied"] != true {
		t.Error("applied should be true")
	}

	getResult, err := h.HandleGetContext(ctx, makeRequest(map[string]any{"profile_id": "user-transition-apply"}))
	if err != nil {
		t.Fatalf("get handler returned error: %v", err)
	}
	getOutput := parseOutput(t, getResult)
	state := getOutput["personal_state"].(map[string]any)
	dim := state["cognitive_state"].(map[string]any)
	if dim["value"] != "scattered" {
		t.Errorf("stored value = %v, want scattered (patch applied)", dim["value"])
	}
}

func TestHandleResolveRules(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-rules")

	// Defaults to the context's own constitution.
	result, err := h.HandleResolveRules(ctx, makeRequest(map[string]any{"profile_id": "user-rules"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["constitution_id"] != "personal.growth.creative" {
		t.Errorf("constitution_id = %v", output["constitution_id"])
	}
	if len(output["active"].([]any)) == 0 {
		t.Error("expected active rules")
	}

	// Explicit override.
	result, err = h.HandleResolveRules(ctx, makeRequest(map[string]any{
		"profile_id":      "user-rules",
		"constitution_id": "techcorp.career.advisor",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["constitution_id"] != "techcorp.career.advisor" {
		t.Errorf("constitution_id = %v", output["constitution_id"])
	}

	// Unknown constitution.
	result, err = h.HandleResolveRules(ctx, makeRequest(map[string]any{
		"profile_id":      "user-rules",
		"constitution_id": "no.such.constitution",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected NOT_FOUND for unknown constitution")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleConstitutionCode(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	result, err := h.HandleConstitutionCode(context.Background(), makeRequest(map[string]any{
		"constitution_id": "personal.growth.creative",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["code"] != "M3+C+H+P" {
		t.Errorf("code = %v, want M3+C+H+P", output["code"])
	}

	result, err = h.HandleConstitutionCode(context.Background(), makeRequest(map[string]any{
		"constitution_id": "unknown",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["code"] != "??+?" {
		t.Errorf("unknown code = %v, want ??+?", output["code"])
	}
}

func TestHandleAuditSummary(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()
	ctx := context.Background()

	seedContext(t, h, "user-summary")
	grantReq := makeRequest(map[string]any{
		"profile_id":  "user-summary",
		"platform_id": "musicmaster",
		"granted":     true,
	})
	if _, err := h.HandleGrantConsent(ctx, grantReq); err != nil {
		t.Fatalf("grant handler returned error: %v", err)
	}

	result, err := h.HandleAuditSummary(ctx, makeRequest(map[string]any{
		"profile_id":  "user-summary",
		"stakeholder": "hr",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	summary := output["summary"].(map[string]any)
	if summary["total_events"].(float64) != 1 {
		t.Errorf("total_events = %v, want 1", summary["total_events"])
	}
	if _, ok := output["comparison"].(map[string]any); !ok {
		t.Error("stakeholder request should include a comparison view")
	}

	// Without a stakeholder there is no comparison.
	result, err = h.HandleAuditSummary(ctx, makeRequest(map[string]any{"profile_id": "user-summary"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if _, ok := output["comparison"]; ok {
		t.Error("comparison should be omitted without a stakeholder")
	}
}

func TestHandlePracticeWindows(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	result, err := h.HandlePracticeWindows(context.Background(), makeRequest(map[string]any{
		"current_shift":     "day",
		"current_energy":    3,
		"quiet_hours_start": 21,
		"quiet_hours_end":   8,
		"preferred_times":   []any{"evening"},
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	windows := output["windows"].([]any)
	if len(windows) == 0 || len(windows) > 5 {
		t.Fatalf("got %d windows, want 1-5", len(windows))
	}
	first := windows[0].(map[string]any)
	if first["reasoning"] == "" {
		t.Error("windows should carry reasoning")
	}
}

func TestServerRegistration(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(h.store, h.cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"vcp_get_context",
		"vcp_update_field",
		"vcp_merge_context",
		"vcp_encode_token",
		"vcp_share_preview",
		"vcp_filter_context",
		"vcp_grant_consent",
		"vcp_classify_intent",
		"vcp_detect_transition",
		"vcp_resolve_rules",
		"vcp_constitution_code",
		"vcp_audit_log",
		"vcp_audit_summary",
		"vcp_practice_windows",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"vcp_filter_context", "vcp_grant_consent"}
	s := NewServer(h.store, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 12 {
		t.Errorf("registered tool count = %d, want 12", len(tools))
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["vcp_get_context"]; !ok {
		t.Error("core tool vcp_get_context should be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h, cleanup := testSetup(t)
	defer cleanup()

	cfg := config.DefaultConfig()
	cfg.DisabledTools = AllToolNames()
	s := NewServer(h.store, cfg, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"vcp_get_context", "vcp_encode_token"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"vcp_get_context", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 14 {
		t.Errorf("AllToolNames() returned %d names, want 14", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewContextTooLarge(100, 250))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrContextTooLarge) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrContextTooLarge)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}

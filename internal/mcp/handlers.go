package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vcp/internal/accel"
	"github.com/hpungsan/vcp/internal/audit"
	"github.com/hpungsan/vcp/internal/config"
	"github.com/hpungsan/vcp/internal/errors"
	"github.com/hpungsan/vcp/internal/store"
	"github.com/hpungsan/vcp/internal/vcp"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
	cfg   *config.Config

	// now is swappable in tests
	now func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cfg *config.Config) *Handlers {
	return &Handlers{store: st, cfg: cfg, now: time.Now}
}

// Request types for each tool

// GetContextRequest represents the arguments for vcp_get_context.
type GetContextRequest struct {
	ProfileID string `json:"profile_id"`
	Effective bool   `json:"effective,omitempty"`
}

// UpdateFieldRequest represents the arguments for vcp_update_field.
type UpdateFieldRequest struct {
	ProfileID string `json:"profile_id"`
	Section   string `json:"section"`
	Value     any    `json:"value"`
}

// MergeContextRequest represents the arguments for vcp_merge_context.
type MergeContextRequest struct {
	ProfileID string          `json:"profile_id"`
	Patch     json.RawMessage `json:"patch"`
}

// EncodeTokenRequest represents the arguments for vcp_encode_token.
type EncodeTokenRequest struct {
	ProfileID string `json:"profile_id"`
	Display   bool   `json:"display,omitempty"`
}

// PlatformRequest carries the manifest arguments shared by preview and
// filter.
type PlatformRequest struct {
	ProfileID  string   `json:"profile_id"`
	PlatformID string   `json:"platform_id"`
	Required   []string `json:"required,omitempty"`
	Optional   []string `json:"optional,omitempty"`
}

// GrantConsentRequest represents the arguments for vcp_grant_consent.
type GrantConsentRequest struct {
	ProfileID      string   `json:"profile_id"`
	PlatformID     string   `json:"platform_id"`
	Granted        bool     `json:"granted"`
	RequiredFields []string `json:"required_fields,omitempty"`
	OptionalShare  []string `json:"optional_share,omitempty"`
	OptionalHide   []string `json:"optional_hide,omitempty"`
}

// ClassifyIntentRequest represents the arguments for vcp_classify_intent.
type ClassifyIntentRequest struct {
	ProfileID string `json:"profile_id"`
}

// DetectTransitionRequest represents the arguments for vcp_detect_transition.
type DetectTransitionRequest struct {
	ProfileID string          `json:"profile_id"`
	Patch     json.RawMessage `json:"patch"`
	Apply     bool            `json:"apply,omitempty"`
}

// ResolveRulesRequest represents the arguments for vcp_resolve_rules.
type ResolveRulesRequest struct {
	ProfileID      string `json:"profile_id"`
	ConstitutionID string `json:"constitution_id,omitempty"`
}

// ConstitutionCodeRequest represents the arguments for vcp_constitution_code.
type ConstitutionCodeRequest struct {
	ConstitutionID string `json:"constitution_id"`
}

// AuditLogRequest represents the arguments for vcp_audit_log.
type AuditLogRequest struct {
	ProfileID  string `json:"profile_id"`
	PlatformID string `json:"platform_id,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	Today      bool   `json:"today,omitempty"`
}

// AuditSummaryRequest represents the arguments for vcp_audit_summary.
type AuditSummaryRequest struct {
	ProfileID   string `json:"profile_id"`
	Stakeholder string `json:"stakeholder,omitempty"`
}

// PracticeWindowsRequest represents the arguments for vcp_practice_windows.
type PracticeWindowsRequest struct {
	CurrentShift   string   `json:"current_shift,omitempty"`
	CurrentEnergy  int      `json:"current_energy,omitempty"`
	QuietStart     int      `json:"quiet_hours_start,omitempty"`
	QuietEnd       int      `json:"quiet_hours_end,omitempty"`
	PreferredTimes []string `json:"preferred_times,omitempty"`
}

// Handler implementations

// HandleGetContext handles the vcp_get_context tool call.
func (h *Handlers) HandleGetContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	if !input.Effective {
		return successResult(stored)
	}
	return successResult(map[string]any{
		"context":         stored,
		"effective_state": vcp.EffectiveState(stored.PersonalState, h.now()),
	})
}

// HandleUpdateField handles the vcp_update_field tool call.
func (h *Handlers) HandleUpdateField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateFieldRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	now := h.now()
	updated, err := vcp.UpdateField(stored, input.Section, input.Value, now)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.checkSize(updated); err != nil {
		return errorResult(err), nil
	}
	if err := h.store.SaveContext(updated, now); err != nil {
		return errorResult(err), nil
	}

	return successResult(updated)
}

// HandleMergeContext handles the vcp_merge_context tool call.
func (h *Handlers) HandleMergeContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MergeContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	now := h.now()

	// A merge onto an unknown profile creates the context. This is the
	// only creation path over MCP.
	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return errorResult(err), nil
		}
		stored = vcp.NewContext(vcp.NewContextOptions{ProfileID: input.ProfileID}, now)
	}

	patch, err := decodePatch(input.Patch)
	if err != nil {
		return errorResult(err), nil
	}

	merged := vcp.Merge(stored, patch, now)
	if err := h.checkSize(merged); err != nil {
		return errorResult(err), nil
	}
	if err := h.store.SaveContext(merged, now); err != nil {
		return errorResult(err), nil
	}

	return successResult(merged)
}

// HandleEncodeToken handles the vcp_encode_token tool call.
func (h *Handlers) HandleEncodeToken(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EncodeTokenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	now := h.now()
	lines := accel.Encode(h.cfg.AccelCodecPath, stored, now)

	result := map[string]any{
		"lines":   lines,
		"wire":    vcp.WireFormat(lines),
		"summary": vcp.SummarizeTransmission(stored, now),
	}
	if input.Display {
		result["display"] = vcp.FormatTokenForDisplay(lines)
	}
	return successResult(result)
}

// HandleSharePreview handles the vcp_share_preview tool call.
func (h *Handlers) HandleSharePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PlatformRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	consent, _ := h.store.GetConsent(input.PlatformID)
	preview := vcp.SharePreview(stored, manifestOf(input), consent)
	return successResult(preview)
}

// HandleFilterContext handles the vcp_filter_context tool call.
func (h *Handlers) HandleFilterContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PlatformRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	consent, _ := h.store.GetConsent(input.PlatformID)
	filtered, err := vcp.FilterForPlatform(stored, manifestOf(input), consent)
	if err != nil {
		return errorResult(err), nil
	}

	h.store.AppendAudit(input.ProfileID, audit.ShareLogged(
		input.PlatformID,
		vcp.SharedFieldNames(filtered),
		vcp.WithheldFieldNames(stored),
		vcp.InferredConstraintCount(stored),
		h.now(),
	))

	return successResult(filtered)
}

// HandleGrantConsent handles the vcp_grant_consent tool call.
func (h *Handlers) HandleGrantConsent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GrantConsentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.PlatformID == "" {
		return errorResult(errors.NewInvalidRequest("platform_id is required")), nil
	}

	now := h.now()
	if !input.Granted {
		h.store.RevokeConsent(input.PlatformID)
		h.store.AppendAudit(input.ProfileID, audit.ConsentLogged(input.PlatformID, false, nil, now))
		return successResult(map[string]any{"platform_id": input.PlatformID, "granted": false})
	}

	record := &vcp.ConsentRecord{
		PlatformID:     input.PlatformID,
		Granted:        true,
		RequiredFields: input.RequiredFields,
		OptionalShare:  input.OptionalShare,
		OptionalHide:   input.OptionalHide,
		GrantedAt:      vcp.Timestamp(now),
	}
	if err := h.store.GrantConsent(record, now); err != nil {
		return errorResult(err), nil
	}
	h.store.AppendAudit(input.ProfileID, audit.ConsentLogged(input.PlatformID, true, input.RequiredFields, now))

	return successResult(record)
}

// HandleClassifyIntent handles the vcp_classify_intent tool call.
func (h *Handlers) HandleClassifyIntent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyIntentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(vcp.ClassifyIntent(stored, h.now()))
}

// HandleDetectTransition handles the vcp_detect_transition tool call.
func (h *Handlers) HandleDetectTransition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DetectTransitionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	patch, err := decodePatch(input.Patch)
	if err != nil {
		return errorResult(err), nil
	}

	now := h.now()
	merged := vcp.Merge(stored, patch, now)
	result := vcp.DetectTransition(stored, merged)

	if input.Apply {
		if err := h.checkSize(merged); err != nil {
			return errorResult(err), nil
		}
		if err := h.store.SaveContext(merged, now); err != nil {
			return errorResult(err), nil
		}
	}

	return successResult(map[string]any{
		"transition": result,
		"applied":    input.Apply,
	})
}

// HandleResolveRules handles the vcp_resolve_rules tool call.
func (h *Handlers) HandleResolveRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResolveRulesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	stored, err := h.store.GetContext(input.ProfileID)
	if err != nil {
		return errorResult(err), nil
	}

	constitutionID := input.ConstitutionID
	if constitutionID == "" {
		constitutionID = stored.Constitution.ID
	}
	constitution, ok := vcp.ConstitutionByID(constitutionID)
	if !ok {
		return errorResult(errors.NewNotFound(constitutionID)), nil
	}

	return successResult(vcp.ResolveRules(constitution, vcp.DerivedConstraints(stored)))
}

// HandleConstitutionCode handles the vcp_constitution_code tool call.
func (h *Handlers) HandleConstitutionCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConstitutionCodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(map[string]any{
		"constitution_id": input.ConstitutionID,
		"code":            vcp.ConstitutionCodeByID(input.ConstitutionID),
	})
}

// HandleAuditLog handles the vcp_audit_log tool call.
func (h *Handlers) HandleAuditLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AuditLogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	trail := h.store.AuditTrail(input.ProfileID)

	var entries []audit.Entry
	switch {
	case input.Today:
		entries = trail.Today(h.now())
	case input.PlatformID != "":
		entries = trail.ByPlatform(input.PlatformID)
	case input.EventType != "":
		entries = trail.ByEventType(audit.EventType(input.EventType))
	default:
		entries = trail.Entries()
	}

	// Filters compose when more than one is set
	if input.Today && input.PlatformID != "" {
		entries = filterEntries(entries, func(e audit.Entry) bool { return e.PlatformID == input.PlatformID })
	}
	if (input.Today || input.PlatformID != "") && input.EventType != "" {
		entries = filterEntries(entries, func(e audit.Entry) bool { return e.EventType == audit.EventType(input.EventType) })
	}

	return successResult(map[string]any{
		"profile_id": input.ProfileID,
		"entries":    entries,
	})
}

// HandleAuditSummary handles the vcp_audit_summary tool call.
func (h *Handlers) HandleAuditSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AuditSummaryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	entries := h.store.AuditTrail(input.ProfileID).Entries()
	result := map[string]any{
		"profile_id": input.ProfileID,
		"summary":    audit.Summarize(entries),
	}
	if input.Stakeholder != "" {
		result["comparison"] = audit.Compare(entries, audit.Stakeholder(input.Stakeholder))
	}
	return successResult(result)
}

// HandlePracticeWindows handles the vcp_practice_windows tool call.
func (h *Handlers) HandlePracticeWindows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PracticeWindowsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	windows := vcp.RecommendPracticeWindows(vcp.ScheduleInput{
		CurrentShift:   vcp.Shift(input.CurrentShift),
		CurrentEnergy:  input.CurrentEnergy,
		QuietStart:     input.QuietStart,
		QuietEnd:       input.QuietEnd,
		PreferredTimes: input.PreferredTimes,
	})
	return successResult(map[string]any{"windows": windows})
}

// Helpers

func (h *Handlers) checkSize(ctx *vcp.Context) error {
	body, err := json.Marshal(ctx)
	if err != nil {
		return errors.NewInternal(err)
	}
	if len(body) > h.cfg.ContextMaxChars {
		return errors.NewContextTooLarge(h.cfg.ContextMaxChars, len(body))
	}
	return nil
}

func decodePatch(raw json.RawMessage) (*vcp.Context, error) {
	if len(raw) == 0 {
		return nil, errors.NewInvalidRequest("patch is required")
	}
	var patch vcp.Context
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, errors.NewInvalidRequest("patch must be a partial context object")
	}
	return &patch, nil
}

func manifestOf(input PlatformRequest) vcp.PlatformManifest {
	return vcp.PlatformManifest{
		PlatformID:     input.PlatformID,
		RequiredFields: input.Required,
		OptionalFields: input.Optional,
	}
}

func filterEntries(entries []audit.Entry, keep func(audit.Entry) bool) []audit.Entry {
	out := make([]audit.Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if vcpErr, ok := err.(*errors.VCPError); ok {
		errorObj := map[string]any{
			"code":    vcpErr.Code,
			"message": vcpErr.Message,
			"status":  vcpErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if vcpErr.Code != errors.ErrInternal && vcpErr.Details != nil {
			errorObj["details"] = vcpErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

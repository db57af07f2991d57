package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Free-form object arguments (patches, consent records,
// dimension values) are declared as objects and decoded by the handlers.

var getContextToolDef = mcp.NewTool("vcp_get_context",
	mcp.WithDescription("Get a stored context by profile id, optionally with the decayed personal state."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id (user-<ulid>)"),
	),
	mcp.WithBoolean("effective",
		mcp.Description("Include the decayed personal state view"),
	),
)

var updateFieldToolDef = mcp.NewTool("vcp_update_field",
	mcp.WithDescription("Replace one section of a context (public_profile, portable_preferences, current_skills, constraints, availability, private_context, personal_state, system_context, shared_with_manager)."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithString("section",
		mcp.Required(),
		mcp.Description("Section name to replace"),
	),
	mcp.WithObject("value",
		mcp.Description("New section value (object for map sections, string for system_context)"),
	),
)

var mergeContextToolDef = mcp.NewTool("vcp_merge_context",
	mcp.WithDescription("Deep-merge a partial context into a stored context. public_profile, portable_preferences and constraints merge key by key; other sections replace wholesale."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithObject("patch",
		mcp.Required(),
		mcp.Description("Partial context object to merge"),
	),
)

var encodeTokenToolDef = mcp.NewTool("vcp_encode_token",
	mcp.WithDescription("Encode a context as a CSM-1 token. Returns the token lines, the single-line wire form and a transmission summary."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithBoolean("display",
		mcp.Description("Also include a framed display rendering"),
	),
)

var sharePreviewToolDef = mcp.NewTool("vcp_share_preview",
	mcp.WithDescription("Preview what a platform would and would not receive, without consent and without sharing anything."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithString("platform_id",
		mcp.Required(),
		mcp.Description("Platform id the manifest belongs to"),
	),
	mcp.WithArray("required",
		mcp.Description("Field names the platform requires"),
	),
	mcp.WithArray("optional",
		mcp.Description("Field names the platform would like"),
	),
)

var filterContextToolDef = mcp.NewTool("vcp_filter_context",
	mcp.WithDescription("Produce the consent-gated view of a context for a platform and record the share in the audit trail. Fails with CONSENT_REQUIRED when no granted consent exists."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithString("platform_id",
		mcp.Required(),
		mcp.Description("Platform id"),
	),
	mcp.WithArray("required",
		mcp.Description("Field names the platform requires"),
	),
	mcp.WithArray("optional",
		mcp.Description("Field names the platform would like"),
	),
)

var grantConsentToolDef = mcp.NewTool("vcp_grant_consent",
	mcp.WithDescription("Grant or revoke a platform's consent record. granted:false removes the record entirely."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id whose audit trail records the change"),
	),
	mcp.WithString("platform_id",
		mcp.Required(),
		mcp.Description("Platform id"),
	),
	mcp.WithBoolean("granted",
		mcp.Description("true to grant, false to revoke"),
	),
	mcp.WithArray("required_fields",
		mcp.Description("Required fields the user consents to share"),
	),
	mcp.WithArray("optional_share",
		mcp.Description("Optional fields the user opts into sharing"),
	),
	mcp.WithArray("optional_hide",
		mcp.Description("Required fields the user explicitly hides from previews"),
	),
)

var classifyIntentToolDef = mcp.NewTool("vcp_classify_intent",
	mcp.WithDescription("Infer the likely interaction intent from the decayed personal state."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
)

var detectTransitionToolDef = mcp.NewTool("vcp_detect_transition",
	mcp.WithDescription("Compare the stored context against a merged patch and grade the transition (none, minor, major, emergency). Optionally apply the patch."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithObject("patch",
		mcp.Required(),
		mcp.Description("Partial context describing the new situation"),
	),
	mcp.WithBoolean("apply",
		mcp.Description("Persist the merged context after detection"),
	),
)

var resolveRulesToolDef = mcp.NewTool("vcp_resolve_rules",
	mcp.WithDescription("Evaluate which constitution rules are active for a context's derived constraints."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithString("constitution_id",
		mcp.Description("Constitution to evaluate (defaults to the context's)"),
	),
)

var constitutionCodeToolDef = mcp.NewTool("vcp_constitution_code",
	mcp.WithDescription("Render the compact display code for a constitution (persona initial + adherence + scope initials)."),
	mcp.WithString("constitution_id",
		mcp.Required(),
		mcp.Description("Constitution id"),
	),
)

var auditLogToolDef = mcp.NewTool("vcp_audit_log",
	mcp.WithDescription("List audit entries for a profile, optionally filtered by platform, event type, or to today only."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithString("platform_id",
		mcp.Description("Only entries for this platform"),
	),
	mcp.WithString("event_type",
		mcp.Description("Only entries of this event type"),
	),
	mcp.WithBoolean("today",
		mcp.Description("Only entries from today"),
	),
)

var auditSummaryToolDef = mcp.NewTool("vcp_audit_summary",
	mcp.WithDescription("Summarize a profile's audit trail. With a stakeholder, also return the stripped stakeholder view next to the full view."),
	mcp.WithString("profile_id",
		mcp.Required(),
		mcp.Description("Profile id"),
	),
	mcp.WithString("stakeholder",
		mcp.Description("hr, manager, community, coach, or employee"),
	),
)

var practiceWindowsToolDef = mcp.NewTool("vcp_practice_windows",
	mcp.WithDescription("Recommend up to five practice windows over the next three days from shift, energy, quiet hours and preferred times."),
	mcp.WithString("current_shift",
		mcp.Description("off, day, night, or recovery"),
	),
	mcp.WithNumber("current_energy",
		mcp.Description("Current energy 1-5"),
	),
	mcp.WithNumber("quiet_hours_start",
		mcp.Description("Quiet hours start (0-23)"),
	),
	mcp.WithNumber("quiet_hours_end",
		mcp.Description("Quiet hours end (0-23)"),
	),
	mcp.WithArray("preferred_times",
		mcp.Description("morning, afternoon, evening"),
	),
)

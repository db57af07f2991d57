package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/vcp/internal/config"
	"github.com/hpungsan/vcp/internal/store"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"vcp_get_context": {
		def:     getContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetContext },
	},
	"vcp_update_field": {
		def:     updateFieldToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdateField },
	},
	"vcp_merge_context": {
		def:     mergeContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMergeContext },
	},
	"vcp_encode_token": {
		def:     encodeTokenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEncodeToken },
	},
	"vcp_share_preview": {
		def:     sharePreviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSharePreview },
	},
	"vcp_filter_context": {
		def:     filterContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFilterContext },
	},
	"vcp_grant_consent": {
		def:     grantConsentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGrantConsent },
	},
	"vcp_classify_intent": {
		def:     classifyIntentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassifyIntent },
	},
	"vcp_detect_transition": {
		def:     detectTransitionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDetectTransition },
	},
	"vcp_resolve_rules": {
		def:     resolveRulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResolveRules },
	},
	"vcp_constitution_code": {
		def:     constitutionCodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConstitutionCode },
	},
	"vcp_audit_log": {
		def:     auditLogToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuditLog },
	},
	"vcp_audit_summary": {
		def:     auditSummaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuditSummary },
	},
	"vcp_practice_windows": {
		def:     practiceWindowsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePracticeWindows },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with VCP tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(st *store.Store, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vcp",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(st, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(st *store.Store, cfg *config.Config, version string) error {
	s := NewServer(st, cfg, version)
	return server.ServeStdio(s)
}

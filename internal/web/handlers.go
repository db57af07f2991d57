package web

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/vcp/internal/audit"
	"github.com/hpungsan/vcp/internal/config"
	"github.com/hpungsan/vcp/internal/errors"
	"github.com/hpungsan/vcp/internal/store"
	"github.com/hpungsan/vcp/internal/vcp"
)

// Handlers contains HTTP route handlers for the read-only viewer.
type Handlers struct {
	store    *store.Store
	cfg      *config.Config
	renderer *Renderer

	// now is swappable in tests
	now func() time.Time
}

// HandleProfiles handles GET /profiles — list known profiles.
func (h *Handlers) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	ids := h.store.ContextIDs()

	profiles := make([]ProfileSummary, 0, len(ids))
	for _, id := range ids {
		ctx, err := h.store.GetContext(id)
		if err != nil {
			continue
		}
		profiles = append(profiles, ProfileSummary{
			ProfileID:   id,
			DisplayName: publicString(ctx, "display_name"),
			Goal:        publicString(ctx, "goal"),
			Updated:     ctx.Updated,
		})
	}

	h.renderer.renderPage(w, "profiles", ProfilesPageData{
		PageData: PageData{
			Title:   "Profiles",
			Version: h.renderer.version,
			Nav:     "profiles",
		},
		Profiles: profiles,
	})
}

// HandleProfile handles GET /profiles/{id} — context overview and token.
func (h *Handlers) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("profile ID is required"))
		return
	}

	ctx, err := h.store.GetContext(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	now := h.now()
	lines := vcp.EncodeCSM1(ctx, now)

	h.renderer.renderPage(w, "profile", ProfilePageData{
		PageData: PageData{
			Title:   displayName(ctx),
			Version: h.renderer.version,
			Nav:     "profiles",
		},
		Context:   ctx,
		Effective: vcp.EffectiveState(ctx.PersonalState, now),
		Code:      vcp.ConstitutionCodeByID(ctx.Constitution.ID),
		TokenBox:  vcp.FormatTokenForDisplay(lines),
		Wire:      vcp.WireFormat(lines),
		Summary:   vcp.SummarizeTransmission(ctx, now),
	})
}

// HandleConstitutions handles GET /constitutions — the catalog with rule
// text rendered as markdown.
func (h *Handlers) HandleConstitutions(w http.ResponseWriter, r *http.Request) {
	catalog := vcp.Constitutions()

	items := make([]ConstitutionView, 0, len(catalog))
	for _, c := range catalog {
		rules := make([]template.HTML, 0, len(c.Rules))
		for _, rule := range c.Rules {
			rules = append(rules, renderMarkdown("**"+rule.Name+"** — "+rule.Text))
		}
		items = append(items, ConstitutionView{
			Constitution: c,
			Code:         vcp.ConstitutionCode(&c),
			Scopes:       vcp.ScopeList(c.Scopes),
			RulesHTML:    rules,
		})
	}

	h.renderer.renderPage(w, "constitutions", ConstitutionsPageData{
		PageData: PageData{
			Title:   "Constitutions",
			Version: h.renderer.version,
			Nav:     "constitutions",
		},
		Items: items,
	})
}

// HandleAudit handles GET /profiles/{id}/audit — the audit trail with an
// optional stakeholder comparison via ?stakeholder=.
func (h *Handlers) HandleAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("profile ID is required"))
		return
	}
	if _, err := h.store.GetContext(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	entries := h.store.AuditTrail(id).Entries()

	data := AuditPageData{
		PageData: PageData{
			Title:   "Audit Trail",
			Version: h.renderer.version,
			Nav:     "profiles",
		},
		ProfileID: id,
		Entries:   entries,
		Summary:   audit.Summarize(entries),
	}
	if stakeholder := r.URL.Query().Get("stakeholder"); stakeholder != "" {
		comparison := audit.Compare(entries, audit.Stakeholder(stakeholder))
		data.Stakeholder = stakeholder
		data.Comparison = &comparison
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"profile_id": id,
			"entries":    data.Entries,
			"summary":    data.Summary,
			"comparison": data.Comparison,
		})
		return
	}

	h.renderer.renderPage(w, "audit", data)
}

// publicString reads a string field from the public profile.
func publicString(ctx *vcp.Context, field string) string {
	if s, ok := ctx.PublicProfile[field].(string); ok {
		return s
	}
	return ""
}

// displayName returns the profile's display name, or its id when unset.
func displayName(ctx *vcp.Context) string {
	if name := publicString(ctx, "display_name"); name != "" {
		return name
	}
	return ctx.ProfileID
}

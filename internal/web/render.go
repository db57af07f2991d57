package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/vcp/internal/audit"
	"github.com/hpungsan/vcp/internal/errors"
	"github.com/hpungsan/vcp/internal/vcp"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "profiles", "constitutions"
}

// ProfileSummary is one row on the profile list page.
type ProfileSummary struct {
	ProfileID   string
	DisplayName string
	Goal        string
	Updated     string
}

// ProfilesPageData is the template data for the profile list page.
type ProfilesPageData struct {
	PageData
	Profiles []ProfileSummary
}

// ProfilePageData is the template data for the profile overview page.
type ProfilePageData struct {
	PageData
	Context   *vcp.Context
	Effective map[string]vcp.EffectiveDimension
	Code      string
	TokenBox  string
	Wire      string
	Summary   vcp.TransmissionSummary
}

// ConstitutionView is one catalog entry with its rules rendered to HTML.
type ConstitutionView struct {
	Constitution vcp.Constitution
	Code         string
	Scopes       string
	RulesHTML    []template.HTML
}

// ConstitutionsPageData is the template data for the constitution catalog.
type ConstitutionsPageData struct {
	PageData
	Items []ConstitutionView
}

// AuditPageData is the template data for the audit trail page.
type AuditPageData struct {
	PageData
	ProfileID   string
	Entries     []audit.Entry
	Summary     audit.Summary
	Stakeholder string
	Comparison  *audit.ComparisonView
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
		"intensity":  intensityBar,
		"stakeholders": func() []string {
			return []string{"hr", "manager", "community", "coach", "employee"}
		},
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"profiles":      "profiles.html",
		"profile":       "profile.html",
		"constitutions": "constitutions.html",
		"audit":         "audit.html",
		"error":         "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var vErr *errors.VCPError
	if !stderrors.As(err, &vErr) {
		vErr = errors.NewInternal(err)
	}

	status := vErr.Status
	message := vErr.Message

	// JSON request
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    string(vErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime reformats an RFC 3339 timestamp as "2006-01-02 15:04" UTC.
// Unparseable input passes through unchanged.
func formatTime(ts string) string {
	t, ok := vcp.ParseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// intensityBar renders a 1-5 intensity as filled and empty dots.
func intensityBar(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("●", n) + strings.Repeat("○", 5-n)
}

package audit

// Stakeholder identifies who is looking at the trail. Each stakeholder
// sees event metadata only; field lists and details never leave the
// user's own view.
type Stakeholder string

const (
	StakeholderHR        Stakeholder = "hr"
	StakeholderManager   Stakeholder = "manager"
	StakeholderCommunity Stakeholder = "community"
	StakeholderCoach     Stakeholder = "coach"
	StakeholderEmployee  Stakeholder = "employee"
)

// ComplianceStatus is the attestation block HR and managers see.
// MandatoryAddressed is present for HR only.
type ComplianceStatus struct {
	PolicyFollowed     bool  `json:"policy_followed"`
	BudgetCompliant    bool  `json:"budget_compliant"`
	MandatoryAddressed *bool `json:"mandatory_addressed,omitempty"`
}

// StakeholderEntry is the stripped form of an entry: no field lists, no
// details, just the fact an event happened and whether private context
// played a role.
type StakeholderEntry struct {
	ID         string    `json:"id"`
	Timestamp  string    `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	PlatformID string    `json:"platform_id,omitempty"`

	PrivateContextUsed    bool `json:"private_context_used"`
	PrivateContextExposed bool `json:"private_context_exposed"`

	ComplianceStatus *ComplianceStatus `json:"compliance_status,omitempty"`
	ProgressSummary  string            `json:"progress_summary,omitempty"`
}

// StakeholderView strips each entry down to what the stakeholder may see.
// Exposure reads false unconditionally.
func StakeholderView(entries []Entry, stakeholder Stakeholder) []StakeholderEntry {
	out := make([]StakeholderEntry, 0, len(entries))
	for _, e := range entries {
		view := StakeholderEntry{
			ID:                 e.ID,
			Timestamp:          e.Timestamp,
			EventType:          e.EventType,
			PlatformID:         e.PlatformID,
			PrivateContextUsed: e.PrivateInfluenced > 0,
		}

		switch stakeholder {
		case StakeholderHR:
			addressed := true
			view.ComplianceStatus = &ComplianceStatus{
				PolicyFollowed:     true,
				BudgetCompliant:    budgetCompliant(e),
				MandatoryAddressed: &addressed,
			}
		case StakeholderManager:
			view.ComplianceStatus = &ComplianceStatus{
				PolicyFollowed:  true,
				BudgetCompliant: budgetCompliant(e),
			}
		case StakeholderCommunity, StakeholderCoach:
			if s, ok := e.Details["progress_summary"].(string); ok {
				view.ProgressSummary = s
			}
		}

		out = append(out, view)
	}
	return out
}

// budgetCompliant reads an explicit budget_compliant detail, defaulting
// to compliant.
func budgetCompliant(e Entry) bool {
	if v, ok := e.Details["budget_compliant"].(bool); ok {
		return v
	}
	return true
}

// FullView is the user's own unrestricted view of the trail.
func FullView(entries []Entry) []Entry {
	return entries
}

// ComparisonView pairs the user's full view with a stakeholder's stripped
// view of the same entries, for side-by-side display.
type ComparisonView struct {
	UserView        []Entry            `json:"user_view"`
	StakeholderView []StakeholderEntry `json:"stakeholder_view"`
}

// Compare builds both views over the same entries.
func Compare(entries []Entry, stakeholder Stakeholder) ComparisonView {
	return ComparisonView{
		UserView:        FullView(entries),
		StakeholderView: StakeholderView(entries, stakeholder),
	}
}

// Summary aggregates a trail for at-a-glance display.
type Summary struct {
	TotalEvents       int               `json:"total_events"`
	EventsByType      map[EventType]int `json:"events_by_type"`
	PlatformsAccessed []string          `json:"platforms_accessed"`
	FieldsShared      int               `json:"fields_shared_count"`
	FieldsWithheld    int               `json:"fields_withheld_count"`
	PrivateInfluenced int               `json:"private_influenced_count"`
	PrivateExposed    int               `json:"private_exposed_count"`
}

// Summarize totals a set of entries. PrivateExposed sums a field that is
// always zero, so the summary doubles as an exposure attestation.
func Summarize(entries []Entry) Summary {
	summary := Summary{
		EventsByType:      make(map[EventType]int),
		PlatformsAccessed: make([]string, 0),
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		summary.TotalEvents++
		summary.EventsByType[e.EventType]++
		if e.PlatformID != "" && !seen[e.PlatformID] {
			seen[e.PlatformID] = true
			summary.PlatformsAccessed = append(summary.PlatformsAccessed, e.PlatformID)
		}
		summary.FieldsShared += len(e.DataShared)
		summary.FieldsWithheld += len(e.DataWithheld)
		summary.PrivateInfluenced += e.PrivateInfluenced
		summary.PrivateExposed += e.PrivateExposed
	}
	return summary
}

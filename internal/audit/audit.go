// Package audit records what context left the device, to whom, and what
// stayed behind. Entries are append-only; by design nothing in this
// package can mark a private field as exposed.
package audit

import (
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/vcp/internal/vcp"
)

// EventType labels what kind of disclosure an entry records.
type EventType string

const (
	EventContextShared  EventType = "context_shared"
	EventRecommendation EventType = "recommendation_generated"
	EventAdjustment     EventType = "adjustment_recorded"
	EventConsentGranted EventType = "consent_granted"
	EventConsentRevoked EventType = "consent_revoked"
	EventSkipRequested  EventType = "skip_requested"
)

// Entry is one audit record. DataShared and DataWithheld name fields, not
// values; Details may carry a "_private" sub-map that only the full view
// ever shows.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  string    `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	PlatformID string    `json:"platform_id,omitempty"`

	DataShared   []string `json:"data_shared,omitempty"`
	DataWithheld []string `json:"data_withheld,omitempty"`

	// PrivateInfluenced counts private fields that shaped the event
	// without being transmitted.
	PrivateInfluenced int `json:"private_fields_influenced"`

	// PrivateExposed is always zero; the field exists so every view can
	// attest to it.
	PrivateExposed int `json:"private_fields_exposed"`

	Details map[string]any `json:"details,omitempty"`
}

// Trail is an append-only in-memory sequence of entries, safe for
// concurrent use.
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTrail builds a trail seeded with existing entries, oldest first.
func NewTrail(entries []Entry) *Trail {
	t := &Trail{}
	t.entries = append(t.entries, entries...)
	return t
}

// Append adds an entry to the end of the trail.
func (t *Trail) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// Entries returns a copy of the trail, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of entries.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// ByPlatform returns the entries recorded for one platform.
func (t *Trail) ByPlatform(platformID string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range t.entries {
		if e.PlatformID == platformID {
			out = append(out, e)
		}
	}
	return out
}

// ByEventType returns the entries of one event type.
func (t *Trail) ByEventType(eventType EventType) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range t.entries {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Today returns the entries whose timestamp falls on the same UTC day as
// now. Entries with malformed timestamps are skipped.
func (t *Trail) Today(now time.Time) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	y, m, d := now.UTC().Date()
	out := make([]Entry, 0)
	for _, e := range t.entries {
		ts, ok := vcp.ParseTimestamp(e.Timestamp)
		if !ok {
			continue
		}
		ey, em, ed := ts.UTC().Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

// Platforms returns the unique platform ids in the trail, in first-seen
// order. Entries without a platform are excluded.
func (t *Trail) Platforms() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, e := range t.entries {
		if e.PlatformID == "" || seen[e.PlatformID] {
			continue
		}
		seen[e.PlatformID] = true
		out = append(out, e.PlatformID)
	}
	return out
}

func newEntryID(prefix string, now time.Time) string {
	return prefix + "-" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// ShareLogged builds a context_shared entry. Exposure is zero no matter
// what was shared.
func ShareLogged(platformID string, shared, withheld []string, influenced int, now time.Time) Entry {
	return Entry{
		ID:                newEntryID("share", now),
		Timestamp:         vcp.Timestamp(now),
		EventType:         EventContextShared,
		PlatformID:        platformID,
		DataShared:        append([]string(nil), shared...),
		DataWithheld:      append([]string(nil), withheld...),
		PrivateInfluenced: influenced,
	}
}

// RecommendationLogged builds a recommendation_generated entry. The
// recommendation counts as privately influenced exactly when any context
// was withheld while producing it.
func RecommendationLogged(platformID string, used, withheld []string, details map[string]any, now time.Time) Entry {
	influenced := 0
	if len(withheld) > 0 {
		influenced = 1
	}
	return Entry{
		ID:                newEntryID("rec", now),
		Timestamp:         vcp.Timestamp(now),
		EventType:         EventRecommendation,
		PlatformID:        platformID,
		DataShared:        append([]string(nil), used...),
		DataWithheld:      append([]string(nil), withheld...),
		PrivateInfluenced: influenced,
		Details:           details,
	}
}

// ConsentLogged builds a consent_granted or consent_revoked entry.
func ConsentLogged(platformID string, granted bool, fields []string, now time.Time) Entry {
	eventType := EventConsentGranted
	if !granted {
		eventType = EventConsentRevoked
		fields = nil
	}
	return Entry{
		ID:         newEntryID("consent", now),
		Timestamp:  vcp.Timestamp(now),
		EventType:  eventType,
		PlatformID: platformID,
		DataShared: append([]string(nil), fields...),
	}
}

// AdjustmentLogged builds an adjustment_recorded entry. Only the fact and
// date of the adjustment are shared; every private detail key is recorded
// as withheld and the details themselves live under "_private".
func AdjustmentLogged(platformID, publicSummary string, private map[string]any, now time.Time) Entry {
	withheld := make([]string, 0, len(private))
	for k := range private {
		withheld = append(withheld, k)
	}
	sort.Strings(withheld)

	return Entry{
		ID:                newEntryID("adj", now),
		Timestamp:         vcp.Timestamp(now),
		EventType:         EventAdjustment,
		PlatformID:        platformID,
		DataShared:        []string{"adjustment_count", "adjustment_date"},
		DataWithheld:      withheld,
		PrivateInfluenced: 1,
		Details: map[string]any{
			"public_summary": publicSummary,
			"_private":       private,
		},
	}
}

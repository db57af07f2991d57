// Package store keeps the working set in memory and mirrors it into
// sqlite. Persistence is best-effort: a failed save warns and keeps the
// in-memory state authoritative, and a corrupt row on load warns and
// yields empty state rather than an error.
package store

import (
	"database/sql"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/hpungsan/vcp/internal/audit"
	"github.com/hpungsan/vcp/internal/db"
	"github.com/hpungsan/vcp/internal/errors"
	"github.com/hpungsan/vcp/internal/vcp"
)

// Store is the single run-time owner of contexts, consent records and
// audit trails. Safe for concurrent use through the db handle; callers
// serialize higher-level read-modify-write themselves.
type Store struct {
	database *sql.DB

	contexts map[string]*vcp.Context
	consents map[string]*vcp.ConsentRecord
	trails   map[string]*audit.Trail
}

// Open loads the full state from the database. Rows that fail to decode
// are skipped with a warning.
func Open(database *sql.DB) *Store {
	s := &Store{
		database: database,
		contexts: make(map[string]*vcp.Context),
		consents: make(map[string]*vcp.ConsentRecord),
		trails:   make(map[string]*audit.Trail),
	}

	ids, err := db.ListContextIDs(database)
	if err != nil {
		log.Printf("warning: failed to load contexts: %v", err)
		ids = nil
	}
	for _, id := range ids {
		body, err := db.GetContext(database, id)
		if err != nil {
			log.Printf("warning: failed to load context %s: %v", id, err)
			continue
		}
		var ctx vcp.Context
		if err := json.Unmarshal([]byte(body), &ctx); err != nil {
			log.Printf("warning: corrupt context row %s, skipping: %v", id, err)
			continue
		}
		s.contexts[id] = &ctx
		s.trails[id] = audit.NewTrail(loadTrail(database, id))
	}

	records, err := db.ListConsents(database)
	if err != nil {
		log.Printf("warning: failed to load consents: %v", err)
		records = nil
	}
	for platformID, record := range records {
		var consent vcp.ConsentRecord
		if err := json.Unmarshal([]byte(record), &consent); err != nil {
			log.Printf("warning: corrupt consent row %s, skipping: %v", platformID, err)
			continue
		}
		s.consents[platformID] = &consent
	}

	return s
}

func loadTrail(database *sql.DB, profileID string) []audit.Entry {
	rows, err := db.ListAuditEntries(database, profileID)
	if err != nil {
		log.Printf("warning: failed to load audit trail for %s: %v", profileID, err)
		return nil
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		var e audit.Entry
		if err := json.Unmarshal([]byte(row), &e); err != nil {
			log.Printf("warning: corrupt audit row for %s, skipping: %v", profileID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// SaveContext stores a context in memory and mirrors it to disk. A failed
// mirror write is logged, never surfaced; the in-memory copy stands.
func (s *Store) SaveContext(ctx *vcp.Context, now time.Time) error {
	if ctx == nil || ctx.ProfileID == "" {
		return errors.NewInvalidRequest("context requires a profile_id")
	}

	s.contexts[ctx.ProfileID] = ctx.Clone()
	if _, ok := s.trails[ctx.ProfileID]; !ok {
		s.trails[ctx.ProfileID] = audit.NewTrail(nil)
	}

	body, err := json.Marshal(ctx)
	if err != nil {
		log.Printf("warning: failed to save context %s: %v", ctx.ProfileID, err)
		return nil
	}
	if err := db.UpsertContext(s.database, ctx.ProfileID, string(body), now); err != nil {
		log.Printf("warning: failed to save context %s: %v", ctx.ProfileID, err)
	}
	return nil
}

// GetContext returns a detached copy of a stored context.
func (s *Store) GetContext(profileID string) (*vcp.Context, error) {
	ctx, ok := s.contexts[profileID]
	if !ok {
		return nil, errors.NewNotFound(profileID)
	}
	return ctx.Clone(), nil
}

// ContextIDs returns the stored profile ids, most recently updated first.
func (s *Store) ContextIDs() []string {
	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		ua := s.contexts[ids[a]].Updated
		ub := s.contexts[ids[b]].Updated
		if ua != ub {
			return ua > ub
		}
		return ids[a] < ids[b]
	})
	return ids
}

// AppendAudit appends an entry to a profile's trail and mirrors it.
func (s *Store) AppendAudit(profileID string, entry audit.Entry) {
	trail, ok := s.trails[profileID]
	if !ok {
		trail = audit.NewTrail(nil)
		s.trails[profileID] = trail
	}
	trail.Append(entry)

	body, err := json.Marshal(entry)
	if err != nil {
		log.Printf("warning: failed to save audit entry %s: %v", entry.ID, err)
		return
	}
	ts, ok := vcp.ParseTimestamp(entry.Timestamp)
	if !ok {
		ts = time.Now()
	}
	if err := db.InsertAuditEntry(s.database, entry.ID, profileID, ts, string(body)); err != nil {
		log.Printf("warning: failed to save audit entry %s: %v", entry.ID, err)
	}
}

// AuditTrail returns a profile's trail. A profile with no recorded
// events gets an empty trail, not an error.
func (s *Store) AuditTrail(profileID string) *audit.Trail {
	if trail, ok := s.trails[profileID]; ok {
		return trail
	}
	trail := audit.NewTrail(nil)
	s.trails[profileID] = trail
	return trail
}

// ClearAudit resets a profile's trail, in memory and on disk.
func (s *Store) ClearAudit(profileID string) error {
	s.trails[profileID] = audit.NewTrail(nil)
	if err := db.ClearAuditEntries(s.database, profileID); err != nil {
		log.Printf("warning: failed to clear audit trail for %s: %v", profileID, err)
	}
	return nil
}

// GrantConsent stores a consent record for a platform.
func (s *Store) GrantConsent(record *vcp.ConsentRecord, now time.Time) error {
	if record == nil || record.PlatformID == "" {
		return errors.NewInvalidRequest("consent requires a platform_id")
	}

	stored := *record
	s.consents[record.PlatformID] = &stored

	body, err := json.Marshal(record)
	if err != nil {
		log.Printf("warning: failed to save consent %s: %v", record.PlatformID, err)
		return nil
	}
	if err := db.UpsertConsent(s.database, record.PlatformID, string(body), now); err != nil {
		log.Printf("warning: failed to save consent %s: %v", record.PlatformID, err)
	}
	return nil
}

// RevokeConsent removes a platform's consent record entirely. Revocation
// leaves no standing grant to resurrect.
func (s *Store) RevokeConsent(platformID string) {
	delete(s.consents, platformID)
	if err := db.DeleteConsent(s.database, platformID); err != nil {
		log.Printf("warning: failed to delete consent %s: %v", platformID, err)
	}
}

// GetConsent returns the consent record for a platform, if any.
func (s *Store) GetConsent(platformID string) (*vcp.ConsentRecord, bool) {
	record, ok := s.consents[platformID]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// ListConsents returns all consent records keyed by platform id.
func (s *Store) ListConsents() map[string]*vcp.ConsentRecord {
	out := make(map[string]*vcp.ConsentRecord, len(s.consents))
	for platformID, record := range s.consents {
		copied := *record
		out[platformID] = &copied
	}
	return out
}

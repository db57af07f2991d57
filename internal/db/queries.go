package db

import (
	"database/sql"
	"time"

	"github.com/hpungsan/vcp/internal/errors"
)

// UpsertContext stores or replaces the serialized context for a profile.
func UpsertContext(db *sql.DB, profileID, body string, now time.Time) error {
	query := `
		INSERT INTO contexts (profile_id, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, profileID, body, now.Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetContext retrieves the serialized context for a profile.
func GetContext(db *sql.DB, profileID string) (string, error) {
	var body string
	err := db.QueryRow(`SELECT body FROM contexts WHERE profile_id = ?`, profileID).Scan(&body)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound(profileID)
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return body, nil
}

// ListContextIDs returns all stored profile ids, most recently updated first.
func ListContextIDs(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT profile_id FROM contexts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return ids, nil
}

// InsertAuditEntry appends a serialized audit entry. The trail is
// append-only; there is no update or delete of individual entries.
func InsertAuditEntry(db *sql.DB, id, profileID string, ts time.Time, entry string) error {
	query := `INSERT INTO audit_entries (id, profile_id, ts, entry) VALUES (?, ?, ?, ?)`
	if _, err := db.Exec(query, id, profileID, ts.Unix(), entry); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListAuditEntries returns serialized audit entries for a profile in
// insertion order.
func ListAuditEntries(db *sql.DB, profileID string) ([]string, error) {
	rows, err := db.Query(
		`SELECT entry FROM audit_entries WHERE profile_id = ? ORDER BY ts, id`, profileID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := make([]string, 0)
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// ClearAuditEntries removes all audit entries for a profile. This backs the
// explicit user-initiated trail reset, the one non-append operation.
func ClearAuditEntries(db *sql.DB, profileID string) error {
	if _, err := db.Exec(`DELETE FROM audit_entries WHERE profile_id = ?`, profileID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// UpsertConsent stores or replaces a serialized consent record for a platform.
func UpsertConsent(db *sql.DB, platformID, record string, now time.Time) error {
	query := `
		INSERT INTO consents (platform_id, record, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(platform_id) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, platformID, record, now.Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetConsent retrieves the serialized consent record for a platform.
func GetConsent(db *sql.DB, platformID string) (string, error) {
	var record string
	err := db.QueryRow(`SELECT record FROM consents WHERE platform_id = ?`, platformID).Scan(&record)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound(platformID)
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return record, nil
}

// ListConsents returns all serialized consent records keyed by platform id.
func ListConsents(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`SELECT platform_id, record FROM consents`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := make(map[string]string)
	for rows.Next() {
		var platformID, record string
		if err := rows.Scan(&platformID, &record); err != nil {
			return nil, errors.NewInternal(err)
		}
		records[platformID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

// DeleteConsent removes the consent record for a platform (revocation with
// no surviving grant state).
func DeleteConsent(db *sql.DB, platformID string) error {
	if _, err := db.Exec(`DELETE FROM consents WHERE platform_id = ?`, platformID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

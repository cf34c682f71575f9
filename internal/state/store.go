// Package state persists the durable mapping between the two stores'
// native identifiers plus last-seen content hashes in a SQLite database.
// It is the engine's only memory between runs.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tasksync/pkg/types"
)

// Store provides access to the sync state database.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	open bool
}

// Open opens (creating if necessary) the sync state database at path and
// verifies it is readable. A database that fails SQLite's quick check is
// reported as types.ErrStateCorrupted; the store never repairs it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sync state %s: %w", path, err)
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check;").Scan(&check); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: quick check failed: %v", types.ErrStateCorrupted, err)
	}
	if check != "ok" {
		db.Close()
		return nil, fmt.Errorf("%w: quick check reported %q", types.ErrStateCorrupted, check)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing sync state schema: %w", err)
		}
	}

	return &Store{db: db, path: path, open: true}, nil
}

// Close releases the database handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureOpen() error {
	if !s.open {
		return types.ErrStoreClosed
	}
	return nil
}

// recordColumns is the column list every sync_records query selects,
// in scanRecord order.
const recordColumns = `record_id, supernote_id, apple_id, supernote_hash,
    apple_hash, last_synced_at, provenance, tombstoned`

func scanRecord(row interface{ Scan(...any) error }) (*types.SyncRecord, error) {
	var r types.SyncRecord
	var supernoteID, appleID sql.NullString
	var lastSynced string
	var tombstoned int
	err := row.Scan(&r.ID, &supernoteID, &appleID, &r.SupernoteHash,
		&r.AppleHash, &lastSynced, &r.Provenance, &tombstoned)
	if err != nil {
		return nil, err
	}
	r.SupernoteID = supernoteID.String
	r.AppleID = appleID.String
	r.Tombstoned = tombstoned != 0
	if lastSynced != "" {
		if ts, err := time.Parse(time.RFC3339, lastSynced); err == nil {
			r.LastSyncedAt = ts
		}
	}
	return &r, nil
}

// GetRecord retrieves a sync record by its internal row id.
// Returns types.ErrNotFound if no such record exists.
func (s *Store) GetRecord(id string) (*types.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		"SELECT "+recordColumns+" FROM sync_records WHERE record_id = ?", id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync record %s: %w", id, err)
	}
	return r, nil
}

// AllRecords returns every sync record, tombstoned ones included.
func (s *Store) AllRecords() ([]*types.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT " + recordColumns + " FROM sync_records ORDER BY record_id")
	if err != nil {
		return nil, fmt.Errorf("listing sync records: %w", err)
	}
	defer rows.Close()

	var records []*types.SyncRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertRecord inserts or replaces a sync record. An empty ID is assigned
// a fresh UUID v7 and written back to the record.
func (s *Store) UpsertRecord(r *types.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating record id: %w", err)
		}
		r.ID = id.String()
	}
	if r.Provenance == "" {
		r.Provenance = types.ProvenanceExplicit
	}

	lastSynced := ""
	if !r.LastSyncedAt.IsZero() {
		lastSynced = r.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	tombstoned := 0
	if r.Tombstoned {
		tombstoned = 1
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO sync_records
        (record_id, supernote_id, apple_id, supernote_hash, apple_hash,
         last_synced_at, provenance, tombstoned)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullable(r.SupernoteID), nullable(r.AppleID),
		r.SupernoteHash, r.AppleHash, lastSynced, r.Provenance, tombstoned)
	if err != nil {
		return fmt.Errorf("upserting sync record %s: %w", r.ID, err)
	}
	return nil
}

// TombstoneRecord marks a record as permanently resolved-deleted. The row
// is retained for idempotence and audit; it is never hard-deleted.
func (s *Store) TombstoneRecord(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	res, err := s.db.Exec(
		"UPDATE sync_records SET tombstoned = 1 WHERE record_id = ?", id)
	if err != nil {
		return fmt.Errorf("tombstoning sync record %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// AllCategoryLinks returns every category link, tombstoned ones included.
func (s *Store) AllCategoryLinks() ([]*types.CategoryLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT link_id, supernote_id, apple_id,
        last_supernote_title, last_apple_title, tombstoned
        FROM category_links ORDER BY link_id`)
	if err != nil {
		return nil, fmt.Errorf("listing category links: %w", err)
	}
	defer rows.Close()

	var links []*types.CategoryLink
	for rows.Next() {
		var l types.CategoryLink
		var supernoteID, appleID sql.NullString
		var tombstoned int
		if err := rows.Scan(&l.ID, &supernoteID, &appleID,
			&l.LastSupernoteTitle, &l.LastAppleTitle, &tombstoned); err != nil {
			return nil, fmt.Errorf("scanning category link: %w", err)
		}
		l.SupernoteID = supernoteID.String
		l.AppleID = appleID.String
		l.Tombstoned = tombstoned != 0
		links = append(links, &l)
	}
	return links, rows.Err()
}

// UpsertCategoryLink inserts or replaces a category link. An empty ID is
// assigned a fresh UUID v7 and written back.
func (s *Store) UpsertCategoryLink(l *types.CategoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if l.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating link id: %w", err)
		}
		l.ID = id.String()
	}
	tombstoned := 0
	if l.Tombstoned {
		tombstoned = 1
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO category_links
        (link_id, supernote_id, apple_id, last_supernote_title,
         last_apple_title, tombstoned)
        VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, nullable(l.SupernoteID), nullable(l.AppleID),
		l.LastSupernoteTitle, l.LastAppleTitle, tombstoned)
	if err != nil {
		return fmt.Errorf("upserting category link %s: %w", l.ID, err)
	}
	return nil
}

// CheckIntegrity verifies that no native id appears in two live sync
// records. A violation means the persisted mapping is corrupt: the caller
// must abort rather than reconcile on top of it.
func (s *Store) CheckIntegrity() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	for _, col := range []string{"supernote_id", "apple_id"} {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM sync_records
            WHERE tombstoned = 0 AND %s IS NOT NULL AND %s != ''
            GROUP BY %s HAVING COUNT(*) > 1 LIMIT 1`, col, col, col, col)
		var id string
		var n int
		err := s.db.QueryRow(query).Scan(&id, &n)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("checking sync state integrity: %w", err)
		}
		return fmt.Errorf("%w: %s %q appears in %d records", types.ErrStateCorrupted, col, id, n)
	}
	return nil
}

// LogEntry is one row of the sync audit log.
type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Action    string
	RecordID  string
	Details   string
}

// LogAction appends an entry to the audit log. Details are stored as JSON.
func (s *Store) LogAction(action, recordID string, details any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	var detailJSON string
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encoding log details: %w", err)
		}
		detailJSON = string(data)
	}

	_, err := s.db.Exec(
		"INSERT INTO sync_log (timestamp, action, record_id, details) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339), action, nullable(recordID), nullable(detailJSON))
	if err != nil {
		return fmt.Errorf("logging action %s: %w", action, err)
	}
	return nil
}

// RecentLogs returns the most recent audit log entries, newest first.
func (s *Store) RecentLogs(limit int) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT id, timestamp, action, record_id, details FROM sync_log ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts string
		var recordID, details sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Action, &recordID, &details); err != nil {
			return nil, fmt.Errorf("scanning sync log: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = parsed
		}
		e.RecordID = recordID.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes the sync state for status output.
type Stats struct {
	Total         int
	SupernoteOnly int
	AppleOnly     int
	Paired        int
	Tombstoned    int
}

// Stats computes summary counts over the sync records.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	if err := s.ensureOpen(); err != nil {
		return st, err
	}

	queries := []struct {
		dest  *int
		where string
	}{
		{&st.Total, "1=1"},
		{&st.SupernoteOnly, "supernote_id IS NOT NULL AND supernote_id != '' AND (apple_id IS NULL OR apple_id = '')"},
		{&st.AppleOnly, "apple_id IS NOT NULL AND apple_id != '' AND (supernote_id IS NULL OR supernote_id = '')"},
		{&st.Paired, "supernote_id IS NOT NULL AND supernote_id != '' AND apple_id IS NOT NULL AND apple_id != ''"},
		{&st.Tombstoned, "tombstoned = 1"},
	}
	for _, q := range queries {
		err := s.db.QueryRow("SELECT COUNT(*) FROM sync_records WHERE " + q.where).Scan(q.dest)
		if err != nil {
			return st, fmt.Errorf("computing sync state stats: %w", err)
		}
	}
	return st, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

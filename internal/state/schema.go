package state

// Schema DDL for the sync state database. Tables are created on open if
// missing; existing data is never rewritten by schema setup.
const (
	createSyncRecords = `CREATE TABLE IF NOT EXISTS sync_records (
    record_id TEXT PRIMARY KEY,
    supernote_id TEXT,
    apple_id TEXT,
    supernote_hash TEXT NOT NULL DEFAULT '',
    apple_hash TEXT NOT NULL DEFAULT '',
    last_synced_at TEXT NOT NULL DEFAULT '',
    provenance TEXT NOT NULL DEFAULT 'explicit',
    tombstoned INTEGER NOT NULL DEFAULT 0
);`

	createCategoryLinks = `CREATE TABLE IF NOT EXISTS category_links (
    link_id TEXT PRIMARY KEY,
    supernote_id TEXT,
    apple_id TEXT,
    last_supernote_title TEXT NOT NULL DEFAULT '',
    last_apple_title TEXT NOT NULL DEFAULT '',
    tombstoned INTEGER NOT NULL DEFAULT 0
);`

	createSyncLog = `CREATE TABLE IF NOT EXISTS sync_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    action TEXT NOT NULL,
    record_id TEXT,
    details TEXT
);`

	createIndexSupernoteID = `CREATE INDEX IF NOT EXISTS idx_records_supernote_id
    ON sync_records(supernote_id);`

	createIndexAppleID = `CREATE INDEX IF NOT EXISTS idx_records_apple_id
    ON sync_records(apple_id);`
)

// schemaStatements lists the DDL in execution order.
var schemaStatements = []string{
	createSyncRecords,
	createCategoryLinks,
	createSyncLog,
	createIndexSupernoteID,
	createIndexAppleID,
}

package store

// schemaSQL is the base schema: the query audit log and the seeded static
// glossary that backs definition lookups when every remote source is down.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS query_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	answer TEXT,
	route TEXT,
	confidence REAL DEFAULT 0,
	confidence_bucket TEXT,
	tool_invoked INTEGER DEFAULT 0,
	prompt_tokens INTEGER DEFAULT 0,
	completion_tokens INTEGER DEFAULT 0,
	total_tokens INTEGER DEFAULT 0,
	duration_ms INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at);

CREATE TABLE IF NOT EXISTS static_glossary (
	term TEXT PRIMARY KEY,
	definition TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

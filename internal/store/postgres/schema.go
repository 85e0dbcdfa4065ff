package postgres

// schema creates every table the index uses. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		id           SERIAL PRIMARY KEY,
		text         TEXT NOT NULL UNIQUE,
		search_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS tokens_lower_text_idx ON tokens (lower(text))`,
	`CREATE TABLE IF NOT EXISTS documents (
		id           SERIAL PRIMARY KEY,
		checksum     BIGINT NOT NULL,
		path         TEXT NOT NULL,
		token_count  INTEGER NOT NULL DEFAULT -1,
		open_count   INTEGER NOT NULL DEFAULT 0,
		rating_sum   DOUBLE PRECISION NOT NULL DEFAULT 50,
		rating_count DOUBLE PRECISION NOT NULL DEFAULT 1,
		modified_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (checksum, path)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_path_idx ON documents (path)`,
	`CREATE TABLE IF NOT EXISTS occurrences (
		token_id          INTEGER NOT NULL REFERENCES tokens (id) ON DELETE CASCADE,
		document_id       INTEGER NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
		count             INTEGER NOT NULL CHECK (count >= 1),
		density           DOUBLE PRECISION NOT NULL DEFAULT 0,
		position_average  DOUBLE PRECISION NOT NULL DEFAULT 0,
		position_median   DOUBLE PRECISION NOT NULL DEFAULT 0,
		position_variance DOUBLE PRECISION NOT NULL DEFAULT 0,
		steepness         DOUBLE PRECISION NOT NULL DEFAULT 0,
		positions         BYTEA,
		PRIMARY KEY (token_id, document_id)
	)`,
	`CREATE INDEX IF NOT EXISTS occurrences_document_idx ON occurrences (document_id)`,
	`CREATE TABLE IF NOT EXISTS words (
		kind SMALLINT NOT NULL,
		word TEXT NOT NULL,
		PRIMARY KEY (kind, word)
	)`,
	`CREATE TABLE IF NOT EXISTS frequent_queries (
		query        TEXT PRIMARY KEY,
		search_count INTEGER NOT NULL DEFAULT 0
	)`,
}

var dropSchema = `DROP TABLE IF EXISTS occurrences, tokens, documents, words, frequent_queries CASCADE`

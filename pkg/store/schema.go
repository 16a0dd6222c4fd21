package store

// Field-length ceilings validated before any write.
const (
	MaxSecretLength   = 1000
	MaxChecksumLength = 200
	MaxAliasLength    = 100
	MaxNameLength     = 100
	MaxModelLength    = 100
	MaxErrorLength    = 1000
	MaxPromptLength   = 100000
)

// MaxQueryLimit caps every list scan.
const MaxQueryLimit = 1000

// Schema contains the SQL statements creating the three tables in
// dependency order: users, then credentials, then logs.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id INTEGER NOT NULL UNIQUE,
    username TEXT NOT NULL,
    display_name TEXT NOT NULL,
    trust_level INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    ban_expires_at TIMESTAMP,
    ban_count INTEGER NOT NULL,
    auth_token TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS credentials (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    secret TEXT NOT NULL UNIQUE,
    checksum TEXT NOT NULL,
    alias TEXT,
    status INTEGER NOT NULL,
    pending_since TIMESTAMP NOT NULL,
    owner_id INTEGER NOT NULL,
    is_public BOOLEAN NOT NULL DEFAULT 0,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    usage TEXT,
    FOREIGN KEY(owner_id) REFERENCES users(id),
    UNIQUE(alias, owner_id)
);

CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TIMESTAMP NOT NULL,
    credential_id INTEGER NOT NULL,
    prompt TEXT,
    model TEXT NOT NULL,
    stream BOOLEAN NOT NULL,
    status INTEGER NOT NULL,
    error TEXT,
    usage TEXT,
    FOREIGN KEY(credential_id) REFERENCES credentials(id)
);
`

package mapping

// Schema is the DDL for the canopy database.
const Schema = `
CREATE TABLE IF NOT EXISTS mailbox_mappings (
    user_id     TEXT NOT NULL,
    provider    TEXT NOT NULL,
    client_id   TEXT,
    mapping     TEXT NOT NULL,
    version     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    PRIMARY KEY (user_id, provider)
);

CREATE INDEX IF NOT EXISTS idx_mappings_user ON mailbox_mappings(user_id);
`

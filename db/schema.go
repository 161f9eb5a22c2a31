// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Polls. merkle_root and leaf_count are written only by the ledger append,
-- inside the same transaction as the vote row.
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'scheduled', 'active', 'ended', 'archived')),
    min_k INTEGER NOT NULL DEFAULT 30,
    audience_size INTEGER NOT NULL DEFAULT 0,
    merkle_root TEXT NOT NULL DEFAULT '',
    leaf_count INTEGER NOT NULL DEFAULT 0,
    opened_at TIMESTAMP,
    ended_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_status ON poll(status);

-- Options
CREATE TABLE IF NOT EXISTS option (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    label TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_option_poll_id ON option(poll_id);

-- Votes (ledger leaves). Immutable once written; leaf_index fixes the
-- deterministic leaf order the merkle root is recomputed from.
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    option_id TEXT NOT NULL REFERENCES option(id),
    nullifier_hash TEXT NOT NULL,
    leaf_hash TEXT NOT NULL,
    leaf_index INTEGER NOT NULL,
    ts_bucket TEXT NOT NULL,
    cohort TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    UNIQUE (poll_id, leaf_index)
);

CREATE INDEX IF NOT EXISTS idx_vote_poll_id ON vote(poll_id);
CREATE INDEX IF NOT EXISTS idx_vote_leaf_hash ON vote(poll_id, leaf_hash);

-- Nullifiers. Created exactly once per successful vote, in the same
-- transaction as the vote row. Never deleted.
CREATE TABLE IF NOT EXISTS nullifier (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    nullifier_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (poll_id, nullifier_hash)
);

-- External anchor cycles. One row per anchoring attempt per poll;
-- status moves pending -> confirmed | failed, never backward.
CREATE TABLE IF NOT EXISTS vote_anchor (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    chain_hash TEXT NOT NULL,
    external_tx_ref TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'failed')),
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    confirmed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vote_anchor_poll ON vote_anchor(poll_id, status);

-- Append-only audit trail. Coarse identifiers only, never a vote choice.
CREATE TABLE IF NOT EXISTS security_event (
    id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    result TEXT NOT NULL,
    reason_code TEXT NOT NULL DEFAULT '',
    poll_id TEXT NOT NULL DEFAULT '',
    subject_hash TEXT NOT NULL DEFAULT '',
    score REAL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_security_event_type ON security_event(event_type, created_at);
`

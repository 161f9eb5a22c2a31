// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

The schema includes:

  - poll: poll metadata, lifecycle state, current merkle root
  - option: voting options per poll
  - vote: ledger leaves in append order (immutable)
  - nullifier: one row per (poll, nullifier), never deleted
  - vote_anchor: external anchoring cycles per poll
  - security_event: append-only audit trail

# Relationships

	poll 1──* option
	poll 1──* vote
	poll 1──* nullifier
	poll 1──* vote_anchor

# Invariants enforced here

  - UNIQUE (poll_id, nullifier_hash) rejects a second vote with the same
    nullifier at the storage layer, whatever the caller got wrong.
  - UNIQUE (poll_id, leaf_index) keeps the leaf order gap-free so the root
    recomputes deterministically.
  - vote_anchor.status is CHECK-constrained to pending/confirmed/failed.

Nonces and rate-limit counters are NOT tables: they live in the short-TTL
key-value store (package nonce, package ratelimit).
*/
package db

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the VeilVote API server.

VeilVote is an anonymous, auditable voting backend: ballots cannot be
linked back to a voter, double-voting is blocked by per-poll nullifiers,
every vote lands in a per-poll Merkle ledger whose roots are anchored to
an external chain, and analytics only ever release k-anonymous
aggregates.

# Starting the Server

The server reads environment variables (optionally from a .env file) or
CLI flags:

	DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -p 3419 -d "file:veilvote.db" -t sqlite

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite DSN or PostgreSQL connection string
  - ADMIN_KEY_SALT: secret for admin key HMAC and subject hashing
  - NULLIFIER_SECRET: server-held secret for nullifier derivation
  - ATTEST_SECRET: HMAC key for attestation tokens
  - RECEIPT_SIGNING_KEY: hex secp256k1 key for vote receipts

Optional settings:

  - PORT (-p): server port (default: 3419)
  - REDIS_URL (-r): shared nonce/rate-limit stores
  - ANCHOR_ENDPOINT, ANCHOR_SIGNING_KEY: external chain anchoring
  - HASHER (-hasher): nullifier hash strategy, blake2b or mimc

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (polls, attestations, votes, analytics)
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - hasher, nullifier, attest, nonce: the ballot-authorization pipeline
  - merkle, receipt, anchor: the tamper-evidence pipeline
  - analytics, ratelimit, audit: the privacy and abuse defenses

See package documentation for each component.
*/
package main

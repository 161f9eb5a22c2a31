// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration from CLI flags and environment variables.

# Usage

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Flags take precedence over environment variables. Required settings without
either source produce an error.

# Required Settings

  - DATABASE_URL (-d): sqlite path or postgres connection string
  - ADMIN_KEY_SALT (--admin-salt): secret for per-poll admin key HMAC
  - ADMIN_TOKEN (--admin-token): bearer token for analytics endpoints
  - NULLIFIER_SECRET (--nullifier-secret): server-held nullifier derivation secret
  - ATTEST_SECRET (--attest-secret): attestation token signing secret
  - RECEIPT_SIGNING_KEY (--receipt-key): hex secp256k1 key for vote receipts

# Optional Settings

  - PORT (-p): server port (default 3419)
  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - REDIS_URL (-r): nonce/rate-limit store; in-process stores when empty
  - HASHER_STRATEGY (--hasher): "blake2b" (default) or "mimc"
  - NONCE_TTL_SECONDS, ATTEST_TTL_SECONDS: challenge/attestation lifetimes
  - ANCHOR_CRON, ANCHOR_ENDPOINT, ANCHOR_SIGNING_KEY, ANCHOR_MAX_ATTEMPTS
  - DEFAULT_MIN_K, QUERY_BUDGET, QUERY_WINDOW_SECONDS, MIN_QUERY_SPAN_SECONDS
*/
package cliparse

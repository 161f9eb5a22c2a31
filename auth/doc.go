// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides random identifiers, admin key generation, and
privacy-preserving hashes of request metadata.

# Random Identifiers

	pollID, err := auth.GenerateID(16)   // 32 hex chars
	nonce, err := auth.GenerateToken()   // URL-safe, 192 bits

# Admin Keys

Admin keys are HMAC(pollID, salt), so they can be re-derived and verified
without storage:

	key := auth.GenerateAdminKey(pollID, cfg.AdminKeySalt)
	err := auth.ValidateAdminKey(pollID, key, cfg.AdminKeySalt)

Validation uses constant-time comparison.

# Privacy Hashes

HashIP and HashSubject produce short salted one-way hashes for rate limiting
and audit records. Raw IPs and subject references are never stored.
*/
package auth

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package attest issues and verifies the short-lived authorization that lets
exactly one anonymous vote be cast.

The flow per attestation:

	challenge issued -> identity check (external) -> attestation requested
	-> verified once at vote time -> consumed

Issue consumes the challenge nonce and mints an HS256 token embedding
{poll_id, payload_hash, nullifier, iat, exp} where payload_hash commits to
(pollID, optionID, timestampBucket). Verify is stateless: it checks the
signature, the lifetime, recomputes the payload hash from the claimed vote,
and requires the presented nullifier to match the one the token was minted
for. Failure classes:

  - ErrExpired: retriable, the client requests a fresh nonce.
  - ErrPayloadMismatch: fatal, wrong poll/option/bucket.
  - ErrSignatureInvalid: fatal, logged as a security event by the caller.

No identity ever enters the token.
*/
package attest

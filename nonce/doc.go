// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package nonce issues and atomically consumes single-use, time-limited
challenge tokens.

	svc := nonce.NewService(nonce.NewRedisStore(rdb), 30*time.Second, logger)

	token, ttl, err := svc.Issue(ctx, "attestation")
	err = svc.Consume(ctx, token, "attestation")

Consume is a single atomic check-and-invalidate: two concurrent calls on the
same token see exactly one success. Every failure mode (unknown, expired,
wrong purpose, already consumed) returns the same ErrInvalid, closing the
oracle that distinct errors would open.
*/
package nonce

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package nullifier derives the anonymous per-poll voting tag and enforces its
uniqueness.

	d := nullifier.NewDeriver([]byte(cfg.NullifierSecret), h)
	tag := d.Derive(subjectRef, pollID)

A nullifier proves "this voter already voted in this poll" without revealing
the voter. Uniqueness is enforced by the (poll_id, nullifier_hash) primary
key: InsertTx runs inside the vote transaction, and a conflict surfaces as
ErrAlreadyVoted and rolls the whole vote back.
*/
package nullifier

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package nullifier

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veilvote/veilvote/hasher"
)

// ErrAlreadyVoted means a nullifier is already recorded for this poll. It is
// fatal for the request but not an error condition for the system.
var ErrAlreadyVoted = errors.New("nullifier already recorded for this poll")

// Deriver computes the per-poll, per-voter anonymous tag.
//
// The tag is derived from a server-held secret plus the stable subject
// reference plus the poll id. The client controls none of the inputs, so it
// can neither forge nor predict another voter's nullifier; the same subject
// always maps to the same tag within one poll and to an unrelated tag in any
// other poll.
type Deriver struct {
	secret []byte
	h      hasher.Hasher
}

func NewDeriver(secret []byte, h hasher.Hasher) *Deriver {
	return &Deriver{secret: secret, h: h}
}

// Derive returns the hex nullifier for (subjectRef, pollID).
func (d *Deriver) Derive(subjectRef, pollID string) string {
	digest := d.h.Sum(d.secret, []byte(subjectRef), []byte(pollID))
	return hex.EncodeToString(digest)
}

// InsertTx records a nullifier inside the caller's vote transaction. A
// uniqueness conflict returns ErrAlreadyVoted, which must abort the whole
// transaction: the nullifier row, vote row, and root update land together or
// not at all.
func InsertTx(tx *sql.Tx, pollID, nullifierHash string) error {
	_, err := tx.Exec(`
		INSERT INTO nullifier (poll_id, nullifier_hash, created_at)
		VALUES ($1, $2, $3)
	`, pollID, nullifierHash, time.Now())

	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyVoted
		}
		return fmt.Errorf("failed to insert nullifier: %w", err)
	}
	return nil
}

// Exists reports whether a nullifier is already recorded. Advisory only: the
// authoritative check is the unique key hit by InsertTx.
func Exists(db *sql.DB, pollID, nullifierHash string) (bool, error) {
	var found bool
	err := db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM nullifier
			WHERE poll_id = $1 AND nullifier_hash = $2
		)
	`, pollID, nullifierHash).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check nullifier: %w", err)
	}
	return found, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}

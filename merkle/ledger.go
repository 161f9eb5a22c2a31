// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package merkle

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/veilvote/veilvote/hasher"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/nullifier"
)

var ErrUnknownLeaf = errors.New("leaf not found in ledger")

// Ledger maintains one append-only hash tree per poll. Appends are
// serialized per poll and committed in the same transaction as the vote row
// and the nullifier record, so the tree and the vote table cannot diverge.
type Ledger struct {
	db     *sql.DB
	h      hasher.Hasher
	locks  *xsync.Map[string, *sync.Mutex]
	leaves *xsync.Map[string, [][]byte]
	logger *zap.Logger
}

func NewLedger(conn *sql.DB, h hasher.Hasher, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     conn,
		h:      h,
		locks:  xsync.NewMap[string, *sync.Mutex](),
		leaves: xsync.NewMap[string, [][]byte](),
		logger: logger,
	}
}

// LeafHash derives the ledger leaf for a vote. The coarse timestamp bucket
// keeps submission time out of the leaf.
func (l *Ledger) LeafHash(pollID, optionID, nullifierHash, tsBucket string) string {
	return hex.EncodeToString(l.h.Sum([]byte(pollID), []byte(optionID), []byte(nullifierHash), []byte(tsBucket)))
}

// AppendVote runs the vote critical section: nullifier insert, vote row
// insert, and root update, all in one transaction. Either all three commit
// or none do. Returns nullifier.ErrAlreadyVoted on a double vote, with the
// ledger unchanged.
func (l *Ledger) AppendVote(ctx context.Context, pollID, optionID, nullifierHash, tsBucket, cohort string) (leafHash string, leafIndex int, newRoot string, err error) {
	mu, _ := l.locks.LoadOrStore(pollID, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	current, err := l.loadLeavesLocked(ctx, pollID)
	if err != nil {
		return "", 0, "", err
	}

	leaf := l.h.Sum([]byte(pollID), []byte(optionID), []byte(nullifierHash), []byte(tsBucket))
	leafHash = hex.EncodeToString(leaf)
	leafIndex = len(current)

	next := make([][]byte, leafIndex+1)
	copy(next, current)
	next[leafIndex] = leaf
	newRoot = hex.EncodeToString(Root(l.h, next))

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback()

	if err := nullifier.InsertTx(tx, pollID, nullifierHash); err != nil {
		return "", 0, "", err
	}

	_, err = tx.Exec(`
		INSERT INTO vote (id, poll_id, option_id, nullifier_hash, leaf_hash, leaf_index, ts_bucket, cohort, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.NewString(), pollID, optionID, nullifierHash, leafHash, leafIndex, tsBucket, cohort, time.Now())
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to insert vote: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE poll SET merkle_root = $1, leaf_count = $2 WHERE id = $3 AND leaf_count = $4
	`, newRoot, leafIndex+1, pollID, leafIndex)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to update merkle root: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		// Happens only if a writer bypassed the per-poll lock.
		return "", 0, "", fmt.Errorf("leaf count moved under us for poll %s", pollID)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, "", fmt.Errorf("failed to commit vote transaction: %w", err)
	}

	// Cache is updated only after a successful commit.
	l.leaves.Store(pollID, next)

	return leafHash, leafIndex, newRoot, nil
}

// ProveInclusion builds a sibling path for a committed leaf against the
// poll's current root.
func (l *Ledger) ProveInclusion(ctx context.Context, pollID, leafHash string) (models.MerkleProof, string, error) {
	mu, _ := l.locks.LoadOrStore(pollID, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	current, err := l.loadLeavesLocked(ctx, pollID)
	if err != nil {
		return models.MerkleProof{}, "", err
	}

	target, err := hex.DecodeString(leafHash)
	if err != nil {
		return models.MerkleProof{}, "", ErrUnknownLeaf
	}

	index := -1
	for i, leaf := range current {
		if string(leaf) == string(target) {
			index = i
			break
		}
	}
	if index == -1 {
		return models.MerkleProof{}, "", ErrUnknownLeaf
	}

	proof, err := Prove(l.h, current, index)
	if err != nil {
		return models.MerkleProof{}, "", err
	}

	return encodeProof(proof), hex.EncodeToString(Root(l.h, current)), nil
}

// VerifyInclusion recomputes a root from a leaf and sibling path and
// compares it to the caller-supplied root. Used internally and by the
// public verification endpoint.
func (l *Ledger) VerifyInclusion(leafHash string, proof models.MerkleProof, root string) bool {
	leaf, err := hex.DecodeString(leafHash)
	if err != nil {
		return false
	}
	roottBytes, err := hex.DecodeString(root)
	if err != nil {
		return false
	}
	decoded, err := decodeProof(proof)
	if err != nil {
		return false
	}
	return Verify(l.h, leaf, decoded, roottBytes)
}

// Root reads the committed root and leaf count for a poll.
func (l *Ledger) Root(ctx context.Context, pollID string) (string, int, error) {
	var root string
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT merkle_root, leaf_count FROM poll WHERE id = $1
	`, pollID).Scan(&root, &count)
	if err != nil {
		return "", 0, err
	}
	return root, count, nil
}

// loadLeavesLocked returns the poll's leaf sequence, hitting the database
// only on first touch. Caller holds the poll lock.
func (l *Ledger) loadLeavesLocked(ctx context.Context, pollID string) ([][]byte, error) {
	if cached, ok := l.leaves.Load(pollID); ok {
		return cached, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT leaf_hash FROM vote WHERE poll_id = $1 ORDER BY leaf_index
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger leaves: %w", err)
	}
	defer rows.Close()

	var loaded [][]byte
	for rows.Next() {
		var leafHex string
		if err := rows.Scan(&leafHex); err != nil {
			return nil, fmt.Errorf("failed to scan leaf: %w", err)
		}
		leaf, err := hex.DecodeString(leafHex)
		if err != nil {
			return nil, fmt.Errorf("corrupt leaf hash for poll %s: %w", pollID, err)
		}
		loaded = append(loaded, leaf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	l.leaves.Store(pollID, loaded)
	l.logger.Debug("ledger leaves loaded", zap.String("poll_id", pollID), zap.Int("count", len(loaded)))
	return loaded, nil
}

func encodeProof(p Proof) models.MerkleProof {
	out := models.MerkleProof{
		Siblings: make([]string, len(p.Siblings)),
		Left:     append([]bool(nil), p.Left...),
	}
	for i, s := range p.Siblings {
		out.Siblings[i] = hex.EncodeToString(s)
	}
	return out
}

func decodeProof(p models.MerkleProof) (Proof, error) {
	out := Proof{
		Siblings: make([][]byte, len(p.Siblings)),
		Left:     append([]bool(nil), p.Left...),
	}
	for i, s := range p.Siblings {
		b, err := hex.DecodeString(s)
		if err != nil {
			return Proof{}, err
		}
		out.Siblings[i] = b
	}
	return out, nil
}

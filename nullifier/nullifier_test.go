// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package nullifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilvote/veilvote/hasher"
	"github.com/veilvote/veilvote/testutil"
)

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	h, err := hasher.New(hasher.StrategyBlake2b, []byte("test-secret"))
	require.NoError(t, err)
	return NewDeriver([]byte("test-nullifier-secret"), h)
}

func TestDeriveStablePerPoll(t *testing.T) {
	d := newTestDeriver(t)

	a := d.Derive("subject-1", "poll-1")
	b := d.Derive("subject-1", "poll-1")
	assert.Equal(t, a, b, "same subject and poll must derive the same nullifier")
	assert.Len(t, a, 64)
}

// TestDeriveUnlinkableAcrossPolls is the cross-poll correlation property:
// one subject, two polls, two unrelated tags.
func TestDeriveUnlinkableAcrossPolls(t *testing.T) {
	d := newTestDeriver(t)

	a := d.Derive("subject-1", "poll-1")
	b := d.Derive("subject-1", "poll-2")
	assert.NotEqual(t, a, b)
}

func TestDeriveDistinctSubjects(t *testing.T) {
	d := newTestDeriver(t)

	a := d.Derive("subject-1", "poll-1")
	b := d.Derive("subject-2", "poll-1")
	assert.NotEqual(t, a, b)
}

func TestInsertTxRejectsDuplicate(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, "active", 30)

	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, InsertTx(tx, pollID, "nullifier-a"))
	require.NoError(t, tx.Commit())

	exists, err := Exists(conn, pollID, "nullifier-a")
	require.NoError(t, err)
	assert.True(t, exists)

	// Second insert of the same tag must conflict and roll back.
	tx, err = conn.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	assert.ErrorIs(t, InsertTx(tx, pollID, "nullifier-a"), ErrAlreadyVoted)
}

func TestInsertTxDifferentPollsIndependent(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollA, _ := testutil.CreateTestPoll(t, conn, cfg, "active", 30)
	pollB, _ := testutil.CreateTestPoll(t, conn, cfg, "active", 30)

	for _, pollID := range []string{pollA, pollB} {
		tx, err := conn.Begin()
		require.NoError(t, err)
		require.NoError(t, InsertTx(tx, pollID, "same-tag"))
		require.NoError(t, tx.Commit())
	}
}

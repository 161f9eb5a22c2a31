// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package anchor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilvote/veilvote/audit"
	"github.com/veilvote/veilvote/metrics"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/testutil"
)

func newTestService(t *testing.T, conn *sql.DB, client Client, maxAttempts int) *Service {
	t.Helper()
	svc := NewService(conn, client, audit.NewRecorder(conn, zap.NewNop()), maxAttempts, zap.NewNop())
	t.Cleanup(svc.Stop)
	return svc
}

func setRoot(t *testing.T, conn *sql.DB, pollID, root string, leafCount int) {
	t.Helper()
	_, err := conn.Exec(`UPDATE poll SET merkle_root = $1, leaf_count = $2 WHERE id = $3`, root, leafCount, pollID)
	require.NoError(t, err)
}

func anchorStates(t *testing.T, conn *sql.DB, pollID string) []string {
	t.Helper()
	rows, err := conn.Query(`SELECT status FROM vote_anchor WHERE poll_id = $1 ORDER BY created_at, id`, pollID)
	require.NoError(t, err)
	defer rows.Close()
	var states []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		states = append(states, s)
	}
	return states
}

func TestCycleAnchorsAndConfirms(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusActive, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	client := NewFakeClient()
	svc := newTestService(t, conn, client, 3)

	require.NoError(t, svc.RunCycle(context.Background()))

	assert.Equal(t, []string{models.AnchorConfirmed}, anchorStates(t, conn, pollID))
	latest, err := Latest(context.Background(), conn, pollID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "root-1", latest.ChainHash)
	assert.NotEmpty(t, latest.ExternalTxRef)
	assert.NotNil(t, latest.ConfirmedAt)

	root, ok := client.SubmittedRoot(latest.ExternalTxRef)
	assert.True(t, ok)
	assert.Equal(t, "root-1", root)
}

func TestUnchangedRootIsNotReanchored(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusActive, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	client := NewFakeClient()
	svc := newTestService(t, conn, client, 3)

	require.NoError(t, svc.RunCycle(context.Background()))
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, 1, client.SubmitCount())

	// A moved root gets a fresh anchor.
	setRoot(t, conn, pollID, "root-2", 20)
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, 2, client.SubmitCount())
	assert.Equal(t, []string{models.AnchorConfirmed, models.AnchorConfirmed}, anchorStates(t, conn, pollID))
}

func TestSlowConfirmationStaysPending(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusActive, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	client := NewFakeClient()
	client.ConfirmAfter = 2
	svc := newTestService(t, conn, client, 3)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorPending}, anchorStates(t, conn, pollID))
	assert.Equal(t, 1, client.SubmitCount(), "pending anchor must not be resubmitted")

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorPending}, anchorStates(t, conn, pollID))

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorConfirmed}, anchorStates(t, conn, pollID))
	assert.Equal(t, 1, client.SubmitCount())
}

func TestSubmitFailuresExhaustIntoFailed(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusActive, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	client := NewFakeClient()
	client.SubmitErr = errors.New("chain unreachable")
	svc := newTestService(t, conn, client, 3)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorPending}, anchorStates(t, conn, pollID))
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorPending}, anchorStates(t, conn, pollID))
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorFailed}, anchorStates(t, conn, pollID))

	// The failure lands on the audit trail.
	rec := audit.NewRecorder(conn, zap.NewNop())
	events, err := rec.RecentByType(context.Background(), audit.EventAnchorCycle, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ReasonAnchorUnreachable, events[0].ReasonCode)

	// A failed anchor frees the root for a new attempt once the chain
	// recovers.
	client.SubmitErr = nil
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorFailed, models.AnchorConfirmed}, anchorStates(t, conn, pollID))
}

func TestTerminalOutcomesAreCounted(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusActive, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	confirmedBefore := promtest.ToFloat64(metrics.AnchorOutcomes.WithLabelValues(models.AnchorConfirmed))
	failedBefore := promtest.ToFloat64(metrics.AnchorOutcomes.WithLabelValues(models.AnchorFailed))

	client := NewFakeClient()
	svc := newTestService(t, conn, client, 1)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, confirmedBefore+1,
		promtest.ToFloat64(metrics.AnchorOutcomes.WithLabelValues(models.AnchorConfirmed)))

	// With one allowed attempt, a single submit error is terminal.
	setRoot(t, conn, pollID, "root-2", 20)
	client.SubmitErr = errors.New("chain unreachable")
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, failedBefore+1,
		promtest.ToFloat64(metrics.AnchorOutcomes.WithLabelValues(models.AnchorFailed)))
}

func TestConfirmErrorLeavesPending(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusActive, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	client := NewFakeClient()
	client.ConfirmErr = errors.New("rpc timeout")
	svc := newTestService(t, conn, client, 3)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorPending}, anchorStates(t, conn, pollID))

	client.ConfirmErr = nil
	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, []string{models.AnchorConfirmed}, anchorStates(t, conn, pollID))
}

func TestDraftPollsAreNotAnchored(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	pollID, _ := testutil.CreateTestPoll(t, conn, cfg, models.StatusDraft, 5)
	setRoot(t, conn, pollID, "root-1", 12)

	client := NewFakeClient()
	svc := newTestService(t, conn, client, 3)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Zero(t, client.SubmitCount())
	assert.Empty(t, anchorStates(t, conn, pollID))
}

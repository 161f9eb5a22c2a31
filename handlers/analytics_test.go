// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/testutil"
)

func analyticsHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func getResults(t *testing.T, deps Deps, pollID, breakdownBy, token string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewAnalyticsHandler(deps)
	path := "/analytics/polls/" + pollID + "/results"
	if breakdownBy != "" {
		path += "?breakdown_by=" + breakdownBy
	}
	req := testutil.MakeRequest("GET", path, nil, analyticsHeaders(token))
	req.SetPathValue("id", pollID)
	w := httptest.NewRecorder()
	h.GetResults(w, req)
	return w
}

// fillPoll casts one vote per subject for the given option, all in one
// timestamp bucket and cohort.
func fillPoll(t *testing.T, deps Deps, pollID, optionID, cohort string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		subject := fmt.Sprintf("subject-%s-%d", optionID, i)
		attestation, nullifier := issueAttestation(t, deps, pollID, optionID, "b1", subject)
		w := castVote(t, deps, attestation, models.SubmitVoteRequest{
			PollID:          pollID,
			OptionID:        optionID,
			Nullifier:       nullifier,
			TimestampBucket: "b1",
			Cohort:          cohort,
		})
		testutil.AssertStatus(t, w, http.StatusCreated)
	}
}

func endPoll(t *testing.T, deps Deps, pollID string) {
	t.Helper()
	if _, err := deps.DB.Exec(`UPDATE poll SET status = $1 WHERE id = $2`, models.StatusEnded, pollID); err != nil {
		t.Fatalf("Failed to end poll: %v", err)
	}
}

func TestGetResultsRequiresToken(t *testing.T) {
	deps := newTestDeps(t)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)

	w := getResults(t, deps, pollID, "", "")
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	w = getResults(t, deps, pollID, "", "wrong-token")
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestGetResultsBreakdownByOption(t *testing.T) {
	deps := newTestDeps(t)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)
	optionA := testutil.AddTestOption(t, deps.DB, pollID, "Option A")
	optionB := testutil.AddTestOption(t, deps.DB, pollID, "Option B")

	fillPoll(t, deps, pollID, optionA, "18-25", 3)
	fillPoll(t, deps, pollID, optionB, "18-25", 2)
	endPoll(t, deps, pollID)

	w := getResults(t, deps, pollID, "option", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusOK)

	var result models.AnalyticsResult
	testutil.AssertJSON(t, w, &result)
	if result.Total != 5 {
		t.Errorf("Expected total 5, got %d", result.Total)
	}
	if result.K != 2 {
		t.Errorf("Expected k 2, got %d", result.K)
	}
	if len(result.Buckets) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(result.Buckets))
	}

	// Ended polls report exact counts.
	counts := map[string]int{}
	for _, b := range result.Buckets {
		if b.Suppressed {
			t.Errorf("Did not expect suppression for bucket %v", b.Key)
		}
		counts[b.Key["option"]] = b.Count
	}
	if counts[optionA] != 3 || counts[optionB] != 2 {
		t.Errorf("Unexpected counts %v", counts)
	}
}

func TestGetResultsComplementarySuppression(t *testing.T) {
	deps := newTestDeps(t)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)
	optionA := testutil.AddTestOption(t, deps.DB, pollID, "Option A")
	optionB := testutil.AddTestOption(t, deps.DB, pollID, "Option B")

	// One bucket under k. Hiding it alone would leak its count through
	// subtraction, so the other bucket is hidden too.
	fillPoll(t, deps, pollID, optionA, "18-25", 3)
	fillPoll(t, deps, pollID, optionB, "18-25", 1)
	endPoll(t, deps, pollID)

	w := getResults(t, deps, pollID, "option", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusOK)

	var result models.AnalyticsResult
	testutil.AssertJSON(t, w, &result)
	if result.Total != 4 {
		t.Errorf("Expected total 4, got %d", result.Total)
	}
	for _, b := range result.Buckets {
		if !b.Suppressed {
			t.Errorf("Expected bucket %v to be suppressed", b.Key)
		}
		if b.Count != 0 {
			t.Errorf("Expected suppressed bucket to report 0, got %d", b.Count)
		}
	}
}

func TestGetResultsRejectsUnknownDimension(t *testing.T) {
	deps := newTestDeps(t)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)

	w := getResults(t, deps, pollID, "subject_ref", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestGetResultsSpanGuard(t *testing.T) {
	deps := newTestDeps(t)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)

	// The poll opened moments ago; time-bucketed breakdowns wait out the
	// minimum span.
	w := getResults(t, deps, pollID, "ts_bucket", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusUnprocessableEntity)
}

func TestGetResultsRejectsOverlap(t *testing.T) {
	deps := newTestDeps(t)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)
	optionA := testutil.AddTestOption(t, deps.DB, pollID, "Option A")
	testutil.AddTestOption(t, deps.DB, pollID, "Option B")

	fillPoll(t, deps, pollID, optionA, "18-25", 3)
	endPoll(t, deps, pollID)

	w := getResults(t, deps, pollID, "option,cohort", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusOK)

	// Adding one dimension to a recent query is a differencing attempt.
	w = getResults(t, deps, pollID, "option,cohort,ts_bucket", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
	var errResp models.ErrorResponse
	testutil.AssertJSON(t, w, &errResp)
	if errResp.Code != models.ReasonQueryOverlap {
		t.Errorf("Expected code %s, got %s", models.ReasonQueryOverlap, errResp.Code)
	}

	// The exact same query again is free.
	w = getResults(t, deps, pollID, "option,cohort", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestGetResultsBudget(t *testing.T) {
	cfg := testutil.GetTestConfig()
	cfg.QueryBudget = 1
	deps := newTestDepsWithConfig(t, cfg)
	pollID, _ := testutil.CreateTestPoll(t, deps.DB, deps.Cfg, models.StatusActive, 2)
	optionA := testutil.AddTestOption(t, deps.DB, pollID, "Option A")
	testutil.AddTestOption(t, deps.DB, pollID, "Option B")

	fillPoll(t, deps, pollID, optionA, "18-25", 3)
	endPoll(t, deps, pollID)

	w := getResults(t, deps, pollID, "option", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = getResults(t, deps, pollID, "cohort", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
	var errResp models.ErrorResponse
	testutil.AssertJSON(t, w, &errResp)
	if errResp.Code != models.ReasonBudgetExceeded {
		t.Errorf("Expected code %s, got %s", models.ReasonBudgetExceeded, errResp.Code)
	}

	// Repeating the disclosed query costs nothing.
	w = getResults(t, deps, pollID, "option", deps.Cfg.AdminToken)
	testutil.AssertStatus(t, w, http.StatusOK)
}

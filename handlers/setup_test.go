// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/cliparse"
	"github.com/veilvote/veilvote/models"
	"github.com/veilvote/veilvote/nonce"
	"github.com/veilvote/veilvote/ratelimit"
	"github.com/veilvote/veilvote/testutil"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	return newTestDepsWithConfig(t, testutil.GetTestConfig())
}

func newTestDepsWithConfig(t *testing.T, cfg cliparse.Config) Deps {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	deps, err := NewDeps(conn, cfg, nonce.NewMemoryStore(), ratelimit.NewMemoryStore(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to wire test deps: %v", err)
	}
	return deps
}

// issueAttestation walks the challenge flow and returns the attestation
// token plus the derived nullifier.
func issueAttestation(t *testing.T, deps Deps, pollID, optionID, bucket, subjectRef string) (string, string) {
	t.Helper()
	h := NewAttestationHandler(deps)

	w := httptest.NewRecorder()
	h.Challenge(w, testutil.MakeRequest("POST", "/attestations/challenge",
		models.ChallengeRequest{DeviceID: "test-device"}, nil))
	testutil.AssertStatus(t, w, 200)
	var challenge models.ChallengeResponse
	testutil.AssertJSON(t, w, &challenge)

	w = httptest.NewRecorder()
	h.Issue(w, testutil.MakeRequest("POST", "/attestations/issue", models.IssueAttestationRequest{
		PollID:          pollID,
		OptionID:        optionID,
		TimestampBucket: bucket,
		Nonce:           challenge.Nonce,
		SubjectRef:      subjectRef,
	}, nil))
	testutil.AssertStatus(t, w, 200)
	var issued models.IssueAttestationResponse
	testutil.AssertJSON(t, w, &issued)

	if issued.Attestation == "" || issued.Nullifier == "" {
		t.Fatal("Expected attestation and nullifier in issue response")
	}
	return issued.Attestation, issued.Nullifier
}

// castVote submits one vote through the handler and returns the response.
func castVote(t *testing.T, deps Deps, attestation string, req models.SubmitVoteRequest) *httptest.ResponseRecorder {
	t.Helper()
	h := NewVoteHandler(deps)
	w := httptest.NewRecorder()
	h.SubmitVote(w, testutil.MakeRequest("POST", "/votes", req,
		map[string]string{"Authorization": "Bearer " + attestation}))
	return w
}

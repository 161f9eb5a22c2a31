// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/veilvote/veilvote/auth"
	"github.com/veilvote/veilvote/cliparse"
	"github.com/veilvote/veilvote/db"
	"github.com/veilvote/veilvote/models"
)

// Deterministic test key (secp256k1). Never use outside tests.
const TestReceiptKeyHex = "1111111111111111111111111111111111111111111111111111111111111111"

// SetupTestDB opens a fresh in-memory sqlite database with the full schema.
// Each call gets its own database, so tests stay isolated.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name, err := auth.GenerateID(8)
	if err != nil {
		t.Fatalf("Failed to generate database name: %v", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", name)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// The shared-cache in-memory database vanishes when its last connection
	// closes; one pinned connection keeps it alive for the test's lifetime.
	conn.SetMaxIdleConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                3419,
		DatabaseType:        "sqlite",
		AdminKeySalt:        "test-admin-salt",
		AdminToken:          "test-admin-token",
		NullifierSecret:     "test-nullifier-secret",
		AttestSecret:        "test-attest-secret",
		ReceiptKeyHex:       TestReceiptKeyHex,
		AnalyticsNoiseKey:   "test-noise-key",
		HasherStrategy:      "blake2b",
		NonceTTLSeconds:     30,
		AttestTTLSeconds:    180,
		AnchorCronSpec:      "@every 10m",
		AnchorMaxAttempts:   3,
		DefaultK:            30,
		QueryBudget:         20,
		QueryWindowSeconds:  3600,
		MinQuerySpanSeconds: 86400,
	}
}

// CreateTestPoll creates a poll and returns its ID and admin key.
// status should be one of the models.Status* constants.
func CreateTestPoll(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string, minK int) (pollID, adminKey string) {
	t.Helper()

	pollID, _ = auth.GenerateID(16)
	adminKey = auth.GenerateAdminKey(pollID, cfg.AdminKeySalt)

	var openedAt, endedAt *time.Time
	now := time.Now()
	if status == models.StatusActive || status == models.StatusEnded {
		openedAt = &now
	}
	if status == models.StatusEnded {
		endedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO poll (id, title, description, status, min_k, audience_size, opened_at, ended_at, created_at)
		VALUES ($1, 'Test Poll', 'A test poll', $2, $3, $4, $5, $6, $7)
	`, pollID, status, minK, minK*10, openedAt, endedAt, now)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID, adminKey
}

// AddTestOption adds an option to a poll and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, pollID, label string) string {
	t.Helper()

	optionID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO option (id, poll_id, label)
		VALUES ($1, $2, $3)
	`, optionID, pollID, label)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

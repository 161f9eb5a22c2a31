// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package anchor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FakeClient is an in-memory anchor chain for development and tests. When
// no anchor endpoint is configured the service runs against it, so the
// anchoring state machine stays exercised locally.
type FakeClient struct {
	mu sync.Mutex

	// ConfirmAfter is how many Confirm calls a transaction needs before
	// it reports confirmed. Zero confirms immediately.
	ConfirmAfter int
	// SubmitErr, when set, makes Submit fail.
	SubmitErr error
	// ConfirmErr, when set, makes Confirm fail.
	ConfirmErr error

	next      int
	submitted map[string]string // txRef -> root
	polled    map[string]int    // txRef -> Confirm calls seen
}

var errUnknownTx = errors.New("unknown transaction")

func NewFakeClient() *FakeClient {
	return &FakeClient{
		submitted: make(map[string]string),
		polled:    make(map[string]int),
	}
}

func (c *FakeClient) Submit(_ context.Context, pollID, root string, _ int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	c.next++
	txRef := fmt.Sprintf("fake-tx-%s-%d", pollID, c.next)
	c.submitted[txRef] = root
	return txRef, nil
}

func (c *FakeClient) Confirm(_ context.Context, txRef string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConfirmErr != nil {
		return false, c.ConfirmErr
	}
	if _, ok := c.submitted[txRef]; !ok {
		return false, errUnknownTx
	}
	c.polled[txRef]++
	return c.polled[txRef] > c.ConfirmAfter, nil
}

// SubmittedRoot returns the root a transaction carried.
func (c *FakeClient) SubmittedRoot(txRef string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root, ok := c.submitted[txRef]
	return root, ok
}

// SubmitCount reports how many transactions have been submitted.
func (c *FakeClient) SubmitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

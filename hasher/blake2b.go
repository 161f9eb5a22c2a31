// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hasher

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// blake2bHasher is the default, fast strategy: keyed blake2b-256. The key is
// the server-held hashing secret, so digests are not publicly recomputable.
type blake2bHasher struct {
	key []byte
}

func newBlake2b(key []byte) (*blake2bHasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("blake2b key too long: %d bytes (max %d)", len(key), blake2b.Size)
	}
	// Fail at construction, not per call.
	if _, err := blake2b.New256(key); err != nil {
		return nil, fmt.Errorf("blake2b init: %w", err)
	}
	return &blake2bHasher{key: key}, nil
}

func (b *blake2bHasher) Sum(parts ...[]byte) []byte {
	h, _ := blake2b.New256(b.key)
	h.Write(frame(parts))
	return h.Sum(nil)
}

func (b *blake2bHasher) Name() string { return "blake2b-keyed" }

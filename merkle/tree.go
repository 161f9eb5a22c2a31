// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package merkle

import (
	"bytes"
	"errors"

	"github.com/veilvote/veilvote/hasher"
)

// Proof is a sibling path from a leaf to a root. Left[i] reports whether
// Siblings[i] sits to the left of the running hash at level i.
type Proof struct {
	Siblings [][]byte
	Left     []bool
}

var ErrIndexOutOfRange = errors.New("leaf index out of range")

// Root computes the tree root over ordered leaves. An unpaired node at the
// end of a level is promoted unchanged, so the root is fully determined by
// the leaf sequence. An empty tree has a nil root.
func Root(h hasher.Hasher, leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return nil
	}

	level := make([][]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, h.Sum(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}

	return level[0]
}

// Prove returns the sibling path for the leaf at index.
func Prove(h hasher.Hasher, leaves [][]byte, index int) (Proof, error) {
	if index < 0 || index >= len(leaves) {
		return Proof{}, ErrIndexOutOfRange
	}

	var proof Proof

	level := make([][]byte, len(leaves))
	copy(level, leaves)
	pos := index

	for len(level) > 1 {
		if sibling := pos ^ 1; sibling < len(level) {
			proof.Siblings = append(proof.Siblings, level[sibling])
			proof.Left = append(proof.Left, sibling < pos)
		}
		// A promoted node contributes no sibling at this level.

		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, h.Sum(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
		pos /= 2
	}

	return proof, nil
}

// Verify recomputes the root from a leaf and its sibling path and compares
// it to the caller-supplied root.
func Verify(h hasher.Hasher, leaf []byte, proof Proof, root []byte) bool {
	if len(proof.Siblings) != len(proof.Left) {
		return false
	}

	cur := leaf
	for i, sibling := range proof.Siblings {
		if proof.Left[i] {
			cur = h.Sum(sibling, cur)
		} else {
			cur = h.Sum(cur, sibling)
		}
	}

	return len(root) > 0 && bytes.Equal(cur, root)
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hasher

import (
	"encoding/binary"
	"fmt"
)

// Hasher is the one-way function behind nullifiers, vote leaves, and merkle
// nodes. Parts are length-prefixed before hashing so no two distinct part
// sequences collide by concatenation.
//
// The strategy is chosen once at process start. Mixing strategies within one
// deployment breaks nullifier uniqueness checks.
type Hasher interface {
	// Sum returns a fixed-size digest over the given parts.
	Sum(parts ...[]byte) []byte
	// Name identifies the strategy ("blake2b-keyed" or "mimc-bn254").
	Name() string
}

// Strategy names accepted by New.
const (
	StrategyBlake2b = "blake2b"
	StrategyMiMC    = "mimc"
)

// New selects a hash strategy from configuration. key feeds the keyed
// blake2b variant; the MiMC variant folds it in as a domain prefix.
func New(strategy string, key []byte) (Hasher, error) {
	switch strategy {
	case StrategyBlake2b, "":
		return newBlake2b(key)
	case StrategyMiMC:
		return newMiMC(key), nil
	default:
		return nil, fmt.Errorf("unknown hash strategy %q", strategy)
	}
}

// frame concatenates parts with uvarint length prefixes.
func frame(parts [][]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p) + binary.MaxVarintLen64
	}
	buf := make([]byte, 0, size)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range parts {
		n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
		buf = append(buf, lenBuf[:n]...)
		buf = append(buf, p...)
	}
	return buf
}

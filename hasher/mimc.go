// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package hasher

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// mimcHasher is the circuit-friendly strategy: MiMC over the BN254 scalar
// field. Slower than blake2b, but a zero-knowledge proof of nullifier
// correctness can later be generated over the same function without changing
// any stored digest.
type mimcHasher struct {
	prefix []byte
}

func newMiMC(key []byte) *mimcHasher {
	return &mimcHasher{prefix: key}
}

func (m *mimcHasher) Sum(parts ...[]byte) []byte {
	framed := frame(append([][]byte{m.prefix}, parts...))

	h := mimc.NewMiMC()
	// MiMC consumes field elements, not raw bytes. 31-byte chunks left-padded
	// to the 32-byte block size are always below the BN254 modulus.
	block := make([]byte, mimc.BlockSize)
	for off := 0; off < len(framed); off += mimc.BlockSize - 1 {
		end := off + mimc.BlockSize - 1
		if end > len(framed) {
			end = len(framed)
		}
		chunk := framed[off:end]
		for i := range block {
			block[i] = 0
		}
		copy(block[mimc.BlockSize-len(chunk):], chunk)
		h.Write(block)
	}
	return h.Sum(nil)
}

func (m *mimcHasher) Name() string { return "mimc-bn254" }

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package hasher provides the pluggable one-way function used for nullifiers,
vote leaves, and merkle nodes.

Two strategies sit behind one interface, selected once from configuration:

  - "blake2b" (default): keyed blake2b-256, fast.
  - "mimc": MiMC over the BN254 scalar field, compatible with zero-knowledge
    circuits so proofs over the hash can be added later without rehashing
    stored data.

	h, err := hasher.New(cfg.HasherStrategy, []byte(cfg.NullifierSecret))
	digest := h.Sum([]byte(pollID), []byte(optionID))

Parts are framed with length prefixes before hashing, so Sum(a, b) and
Sum(a+b) never collide.
*/
package hasher

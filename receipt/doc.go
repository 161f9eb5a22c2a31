// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package receipt signs and verifies vote receipts. A receipt binds a
// Merkle leaf hash, poll, nullifier, and timestamp under a deterministic
// CBOR encoding signed with secp256k1, so holders can prove their vote was
// recorded without revealing anything else.
package receipt

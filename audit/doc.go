// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package audit keeps an append-only log of security-relevant events:
// forged attestations, double votes, analytics probing, anchoring failures.
package audit

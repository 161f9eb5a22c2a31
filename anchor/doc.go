// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package anchor periodically commits poll Merkle roots to an external
// chain so the ledger's history cannot be quietly rewritten. The real
// client speaks to any Ethereum-compatible endpoint; a fake client backs
// development and tests.
package anchor

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package analytics serves k-anonymous poll breakdowns. The engine
// suppresses buckets below the disclosure threshold and jitters live
// counts; the guard budgets queries per requester and blocks overlapping
// dimension sets that could be differenced against each other.
package analytics

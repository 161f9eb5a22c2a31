// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package ratelimit implements an adaptive failure limiter. Failed
// verification attempts score heavily, ordinary auth failures lightly;
// crossing the threshold locks the subject out for an hour. Only a
// verified success resets the score.
package ratelimit

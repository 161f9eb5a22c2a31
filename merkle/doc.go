// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package merkle maintains one append-only hash tree per poll and produces and
verifies inclusion proofs.

The pure tree functions (Root, Prove, Verify) operate on ordered leaf
sequences; an unpaired node is promoted unchanged, so the root is a
deterministic function of leaf order.

Ledger binds the tree to storage. AppendVote is the vote critical section:

	leafHash, index, root, err := ledger.AppendVote(ctx, pollID, optionID, tag, bucket, cohort)

It serializes appends per poll and writes the nullifier record, the vote
row, and the new root in one transaction, so a vote row without a leaf (or a
leaf without a nullifier) cannot exist. The in-memory leaf cache is advanced
only after commit.
*/
package merkle

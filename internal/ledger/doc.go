// Package ledger implements the tamper-evident record of committed
// verdicts.
//
// Two independent layers protect the history:
//
//  1. The hash chain: every transaction id commits to the previous
//     transaction id, so any rewrite of history changes every id after
//     it. VerifyChain walks the chain from HEAD recomputing ids.
//  2. The Merkle layer: within one transaction, the verdict batch is
//     committed by a binary Merkle root, enabling per-verdict inclusion
//     proofs without shipping the whole batch.
//
// Odd-node convention: a node left unpaired at any level is promoted to
// the next level unchanged. Promotion (rather than duplication) avoids
// the duplicate-leaf ambiguity of the doubling convention, and the same
// rule is applied in construction, proof generation, and verification.
package ledger

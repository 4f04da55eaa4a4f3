// Package transaction defines the append-only ledger side-effect log: one
// record per committed ledger transaction, used to reconstruct cumulative
// flows and to detect already-processed incoming transfers.
package transaction

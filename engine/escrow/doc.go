// Package escrow orchestrates the canonical fund movements of the bounty
// lifecycle: wallet creation, asset-support declaration, transfers (direct,
// path, and fee-bump sponsored), and swaps.
//
// Every ledger and key-service round trip runs through the retry executor
// for its dependency, and the ledger executor wraps the whole retry loop in
// the ledger circuit breaker. A committed ledger transaction is never rolled
// back or blindly re-submitted here.
package escrow

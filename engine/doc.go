// Package engine is the root of the bounty escrow and settlement engine.
//
// It holds the small shared surface the subpackages build on: environment
// variable helpers for configuration and the business-error response type
// returned at the request boundary. The moving parts live in the
// subpackages: task (bounty lifecycle state machine), escrow (ledger
// orchestration), ledger (Stellar client), circuitbreaker, retry, backoff,
// health and recovery (resilience layer), postgres (persistence), wallet
// (fund sources and key material) and vcs (issue-tracker side effects).
package engine

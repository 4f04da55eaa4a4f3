// Package circuitbreaker gates every outbound dependency call behind a
// per-dependency circuit breaker.
//
// A Manager owns one breaker per dependency name (ledger, version control,
// database, key service) plus a Record mirroring its state, failure count,
// and transition timestamps. All breakers start closed; crossing the
// configured consecutive-failure threshold opens the circuit, calls then
// fail fast with ErrOpen until the cool-down elapses, after which a single
// trial call decides between closing again and re-opening.
//
// The Manager is an injected registry, never package-level state, so tests
// and the recovery coordinator can reset it deterministically.
package circuitbreaker

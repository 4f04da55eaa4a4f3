// Package postgres persists the engine's entities: tasks, activities,
// wallets, the transaction log, and contributor stats. A primary/replica
// resolver routes reads and writes; schema migrations run on connect.
// Store writes that guard on task status are the atomic conditional
// updates the lifecycle relies on.
package postgres

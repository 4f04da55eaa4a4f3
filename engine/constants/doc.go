// Package constant holds the numbered domain error codes shared across the
// engine. Each error's message is its machine-readable code; human-readable
// titles and messages are attached at the boundary by engine.BusinessError.
package constant

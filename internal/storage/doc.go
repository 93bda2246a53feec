// Package storage provides the local key-value map that causally delivered
// writes are applied to. Values are plain strings; each entry remembers the
// node and clock of the write that produced it for observability.
package storage

// Package clock provides a vector clock over a fixed cluster membership.
// Besides the usual happened-before comparison it carries the sender-aware
// deliverability check used for causal delivery of replicated writes.
package clock

// Package metrics defines the Prometheus collectors a node exports about
// causal delivery and replication.
package metrics

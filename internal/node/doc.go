// Package node wires a causal engine, the replication transport and the
// rescan loop to the gRPC services and the optional HTTP gateway.
package node

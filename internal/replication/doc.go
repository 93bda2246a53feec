// Package replication pushes locally accepted writes to every peer and runs
// the periodic sweep over the causal buffer.
//
// Broadcast never blocks the writer: each peer gets its own goroutine and its
// own send timeout, and a failed send is logged and dropped. Lost messages are
// only recovered when later traffic from the same sender arrives.
package replication

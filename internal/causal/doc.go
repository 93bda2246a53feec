// Package causal implements the causal delivery engine of a node: it owns
// the local vector clock, the key-value store and the buffer of replicated
// writes whose dependencies have not been applied yet.
//
// All state sits behind one mutex. A replicated write is applied as soon as
// it is the sender's next write and everything it causally depends on has
// been applied; otherwise it waits in the pending buffer. Every replicated
// write applied re-scans the buffer until nothing more can be delivered.
package causal

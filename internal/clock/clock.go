package clock

import (
	"fmt"
	"sort"
	"strings"
)

// VectorClock represents a vector clock as a map from node ID to counter.
// The key set is the cluster membership and is fixed once the clock is built
// with NewForMembers; Increment and Merge never add new node IDs to it.
// Thread-safe operations should be handled by the caller.
type VectorClock map[string]int64

// NewForMembers creates a vector clock over the given node IDs with every
// counter at zero.
func NewForMembers(ids []string) VectorClock {
	vc := make(VectorClock, len(ids))
	for _, id := range ids {
		vc[id] = 0
	}
	return vc
}

// Increment increments the counter for the given node ID.
// Node IDs outside the clock's domain are ignored.
func (vc VectorClock) Increment(nodeID string) {
	if _, ok := vc[nodeID]; !ok {
		return
	}
	vc[nodeID]++
}

// Get returns the counter value for the given node ID, or 0 if not present.
func (vc VectorClock) Get(nodeID string) int64 {
	return vc[nodeID]
}

// Merge folds another vector clock into this one, taking the maximum counter
// for every node ID in this clock's domain. Entries of other that are not in
// the domain are dropped.
func (vc VectorClock) Merge(other VectorClock) {
	for nodeID, counter := range vc {
		if remote := other[nodeID]; remote > counter {
			vc[nodeID] = remote
		}
	}
}

// Copy creates a deep copy of the vector clock.
func (vc VectorClock) Copy() VectorClock {
	cp := make(VectorClock, len(vc))
	for k, v := range vc {
		cp[k] = v
	}
	return cp
}

// Members returns the node IDs of the clock's domain in sorted order.
func (vc VectorClock) Members() []string {
	ids := make([]string, 0, len(vc))
	for id := range vc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Verdict is the outcome of checking a remote write against the local clock.
type Verdict int

const (
	// Deliverable means every causal predecessor of the write has been applied
	// and the write is the sender's next unseen one.
	Deliverable Verdict = iota
	// Duplicate means the sender's counter in the write is not ahead of ours,
	// so the write was applied already.
	Duplicate
	// Blocked means the write skips ahead of the sender's next counter or
	// depends on a write from another node we have not applied yet.
	Blocked
)

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case Deliverable:
		return "deliverable"
	case Duplicate:
		return "duplicate"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Classify checks msgClock, stamped by sender, against vc (the local clock).
func (vc VectorClock) Classify(msgClock VectorClock, sender string) Verdict {
	local, ok := vc[sender]
	if !ok {
		return Blocked
	}
	next := msgClock[sender]
	if next <= local {
		return Duplicate
	}
	if next != local+1 {
		return Blocked
	}
	for nodeID, counter := range vc {
		if nodeID == sender {
			continue
		}
		if msgClock[nodeID] > counter {
			return Blocked
		}
	}
	return Deliverable
}

// Deliverable reports whether a write stamped with msgClock by sender can be
// applied on top of vc: msgClock[sender] == vc[sender]+1 and
// msgClock[n] <= vc[n] for every other node n.
func (vc VectorClock) Deliverable(msgClock VectorClock, sender string) bool {
	return vc.Classify(msgClock, sender) == Deliverable
}

// CompareResult represents the result of comparing two vector clocks.
type CompareResult int

const (
	// Before indicates this clock happened before the other.
	Before CompareResult = iota
	// After indicates this clock happened after the other.
	After
	// Concurrent indicates the clocks are concurrent (no causal relationship).
	Concurrent
	// Equal indicates the clocks are equal.
	Equal
)

func (r CompareResult) String() string {
	switch r {
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	case Equal:
		return "equal"
	default:
		return "unknown"
	}
}

// Compare compares two vector clocks and returns their relationship.
// Missing entries count as zero.
func (vc VectorClock) Compare(other VectorClock) CompareResult {
	var thisLess, thisGreater bool
	for nodeID, thisVal := range vc {
		otherVal := other[nodeID]
		if thisVal < otherVal {
			thisLess = true
		} else if thisVal > otherVal {
			thisGreater = true
		}
	}
	for nodeID, otherVal := range other {
		if _, ok := vc[nodeID]; !ok && otherVal > 0 {
			thisLess = true
		}
	}

	switch {
	case thisLess && !thisGreater:
		return Before
	case thisGreater && !thisLess:
		return After
	case thisLess && thisGreater:
		return Concurrent
	default:
		return Equal
	}
}

// Equal checks if two vector clocks have the same domain and counters.
func (vc VectorClock) Equal(other VectorClock) bool {
	if len(vc) != len(other) {
		return false
	}
	for nodeID, counter := range vc {
		otherCounter, ok := other[nodeID]
		if !ok || otherCounter != counter {
			return false
		}
	}
	return true
}

// String returns a string representation of the vector clock.
func (vc VectorClock) String() string {
	if len(vc) == 0 {
		return "{}"
	}

	parts := make([]string, 0, len(vc))
	for _, k := range vc.Members() {
		parts = append(parts, fmt.Sprintf("%s:%d", k, vc[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Dominates returns true if this clock dominates (happened after) the other.
func (vc VectorClock) Dominates(other VectorClock) bool {
	return vc.Compare(other) == After
}

// IsConcurrent returns true if this clock is concurrent with the other.
func (vc VectorClock) IsConcurrent(other VectorClock) bool {
	return vc.Compare(other) == Concurrent
}

package wire

import (
	"github.com/pkg/errors"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
)

// ErrMalformedClock is returned by DecodeClock for a clock that names a node
// twice or carries an empty node id.
var ErrMalformedClock = errors.New("malformed vector clock")

// FromClock encodes vc with entries in node id order.
func FromClock(vc clock.VectorClock) *VectorClock {
	ids := vc.Members()
	pb := &VectorClock{Entries: make([]*ClockEntry, 0, len(ids))}
	for _, id := range ids {
		pb.Entries = append(pb.Entries, &ClockEntry{NodeID: id, Counter: vc[id]})
	}
	return pb
}

// DecodeClock decodes a clock received from another node. A nil clock
// decodes to an empty one.
func DecodeClock(pb *VectorClock) (clock.VectorClock, error) {
	vc := clock.VectorClock{}
	if pb == nil {
		return vc, nil
	}
	for i, e := range pb.Entries {
		if e == nil {
			continue
		}
		if e.NodeID == "" {
			return vc, errors.Wrapf(ErrMalformedClock, "entry %d: empty node id", i)
		}
		if _, ok := vc[e.NodeID]; ok {
			return vc, errors.Wrapf(ErrMalformedClock, "entry %d: node %q listed twice", i, e.NodeID)
		}
		vc[e.NodeID] = e.Counter
	}
	return vc, nil
}

// ToClock decodes pb for display. Entries that DecodeClock would reject are
// folded in, the last one winning.
func ToClock(pb *VectorClock) clock.VectorClock {
	vc := clock.VectorClock{}
	if pb == nil {
		return vc
	}
	for _, e := range pb.Entries {
		if e == nil {
			continue
		}
		vc[e.NodeID] = e.Counter
	}
	return vc
}

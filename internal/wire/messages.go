package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ClockEntry is one counter of a vector clock.
type ClockEntry struct {
	NodeID  string
	Counter int64
}

func (e *ClockEntry) AppendWire(b []byte) []byte {
	if e == nil {
		return b
	}
	b = appendString(b, 1, e.NodeID)
	b = appendVarint(b, 2, uint64(e.Counter))
	return b
}

func (e *ClockEntry) UnmarshalWire(b []byte) error {
	*e = ClockEntry{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &e.NodeID)
		case 2:
			return consumeInt64(typ, b, &e.Counter)
		}
		return 0, nil
	})
}

// VectorClock is the encoded form of a vector clock.
type VectorClock struct {
	Entries []*ClockEntry
}

func (c *VectorClock) AppendWire(b []byte) []byte {
	if c == nil {
		return b
	}
	for _, e := range c.Entries {
		b = appendMessage(b, 1, e)
	}
	return b
}

func (c *VectorClock) UnmarshalWire(b []byte) error {
	*c = VectorClock{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		e := new(ClockEntry)
		n, err := consumeMessage(typ, b, e)
		if err == nil {
			c.Entries = append(c.Entries, e)
		}
		return n, err
	})
}

// WriteRequest is a client write.
type WriteRequest struct {
	Key       string
	Value     string
	ClientID  string
	RequestID string
}

func (r *WriteRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.Key)
	b = appendString(b, 2, r.Value)
	b = appendString(b, 3, r.ClientID)
	b = appendString(b, 4, r.RequestID)
	return b
}

func (r *WriteRequest) UnmarshalWire(b []byte) error {
	*r = WriteRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &r.Key)
		case 2:
			return consumeString(typ, b, &r.Value)
		case 3:
			return consumeString(typ, b, &r.ClientID)
		case 4:
			return consumeString(typ, b, &r.RequestID)
		}
		return 0, nil
	})
}

// WriteResponse carries the id and clock assigned to an accepted write.
type WriteResponse struct {
	MessageID string
	Clock     *VectorClock
}

func (r *WriteResponse) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.MessageID)
	if r.Clock != nil {
		b = appendMessage(b, 2, r.Clock)
	}
	return b
}

func (r *WriteResponse) UnmarshalWire(b []byte) error {
	*r = WriteResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &r.MessageID)
		case 2:
			r.Clock = new(VectorClock)
			return consumeMessage(typ, b, r.Clock)
		}
		return 0, nil
	})
}

// ReadRequest is a client read.
type ReadRequest struct {
	Key       string
	ClientID  string
	RequestID string
}

func (r *ReadRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.Key)
	b = appendString(b, 2, r.ClientID)
	b = appendString(b, 3, r.RequestID)
	return b
}

func (r *ReadRequest) UnmarshalWire(b []byte) error {
	*r = ReadRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &r.Key)
		case 2:
			return consumeString(typ, b, &r.ClientID)
		case 3:
			return consumeString(typ, b, &r.RequestID)
		}
		return 0, nil
	})
}

// ReadResponse is the local value of a key and the node clock.
type ReadResponse struct {
	Found  bool
	Value  string
	Origin string
	Clock  *VectorClock
}

func (r *ReadResponse) AppendWire(b []byte) []byte {
	b = appendBool(b, 1, r.Found)
	b = appendString(b, 2, r.Value)
	b = appendString(b, 3, r.Origin)
	if r.Clock != nil {
		b = appendMessage(b, 4, r.Clock)
	}
	return b
}

func (r *ReadResponse) UnmarshalWire(b []byte) error {
	*r = ReadResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBool(typ, b, &r.Found)
		case 2:
			return consumeString(typ, b, &r.Value)
		case 3:
			return consumeString(typ, b, &r.Origin)
		case 4:
			r.Clock = new(VectorClock)
			return consumeMessage(typ, b, r.Clock)
		}
		return 0, nil
	})
}

// ReplicateRequest carries one write from its origin node to a peer.
type ReplicateRequest struct {
	MessageID string
	Sender    string
	Key       string
	Value     string
	Clock     *VectorClock
}

func (r *ReplicateRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.MessageID)
	b = appendString(b, 2, r.Sender)
	b = appendString(b, 3, r.Key)
	b = appendString(b, 4, r.Value)
	if r.Clock != nil {
		b = appendMessage(b, 5, r.Clock)
	}
	return b
}

func (r *ReplicateRequest) UnmarshalWire(b []byte) error {
	*r = ReplicateRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &r.MessageID)
		case 2:
			return consumeString(typ, b, &r.Sender)
		case 3:
			return consumeString(typ, b, &r.Key)
		case 4:
			return consumeString(typ, b, &r.Value)
		case 5:
			r.Clock = new(VectorClock)
			return consumeMessage(typ, b, r.Clock)
		}
		return 0, nil
	})
}

// ReplicateStatus is the receiver's acknowledgement of a replicated write.
// Whether the write was applied or buffered is not reported.
type ReplicateStatus int32

const (
	ReplicateAccepted ReplicateStatus = iota
)

func (s ReplicateStatus) String() string {
	if s == ReplicateAccepted {
		return "accepted"
	}
	return "unknown"
}

// ReplicateResponse acknowledges receipt of a replicated write.
type ReplicateResponse struct {
	Status ReplicateStatus
}

func (r *ReplicateResponse) AppendWire(b []byte) []byte {
	return appendVarint(b, 1, uint64(r.Status))
}

func (r *ReplicateResponse) UnmarshalWire(b []byte) error {
	*r = ReplicateResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		var v uint64
		n, err := consumeVarint(typ, b, &v)
		r.Status = ReplicateStatus(v)
		return n, err
	})
}

// StatsRequest asks a node for its delivery counters.
type StatsRequest struct{}

func (r *StatsRequest) AppendWire(b []byte) []byte { return b }

func (r *StatsRequest) UnmarshalWire(b []byte) error {
	return decodeFields(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}

// StatsResponse reports a node's clock, buffer and counters.
type StatsResponse struct {
	NodeID          string
	Clock           *VectorClock
	Keys            int64
	Pending         int64
	OldestPendingMs int64
	Applied         uint64
	Buffered        uint64
	Duplicates      uint64
}

func (r *StatsResponse) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.NodeID)
	if r.Clock != nil {
		b = appendMessage(b, 2, r.Clock)
	}
	b = appendVarint(b, 3, uint64(r.Keys))
	b = appendVarint(b, 4, uint64(r.Pending))
	b = appendVarint(b, 5, uint64(r.OldestPendingMs))
	b = appendVarint(b, 6, r.Applied)
	b = appendVarint(b, 7, r.Buffered)
	b = appendVarint(b, 8, r.Duplicates)
	return b
}

func (r *StatsResponse) UnmarshalWire(b []byte) error {
	*r = StatsResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &r.NodeID)
		case 2:
			r.Clock = new(VectorClock)
			return consumeMessage(typ, b, r.Clock)
		case 3:
			return consumeInt64(typ, b, &r.Keys)
		case 4:
			return consumeInt64(typ, b, &r.Pending)
		case 5:
			return consumeInt64(typ, b, &r.OldestPendingMs)
		case 6:
			return consumeVarint(typ, b, &r.Applied)
		case 7:
			return consumeVarint(typ, b, &r.Buffered)
		case 8:
			return consumeVarint(typ, b, &r.Duplicates)
		}
		return 0, nil
	})
}

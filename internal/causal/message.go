package causal

import (
	"time"

	"github.com/google/uuid"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
)

// Message is a write stamped by the node that accepted it. It is the unit of
// replication between nodes.
type Message struct {
	ID     string
	Sender string
	Key    string
	Value  string
	Clock  clock.VectorClock
}

func newMessage(sender, key, value string, vc clock.VectorClock) Message {
	return Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Key:    key,
		Value:  value,
		Clock:  vc,
	}
}

// Seq returns the sender's own counter in the message clock, which numbers
// the write among all writes of that sender.
func (m Message) Seq() int64 {
	return m.Clock.Get(m.Sender)
}

// Copy returns a message that shares no state with m.
func (m Message) Copy() Message {
	m.Clock = m.Clock.Copy()
	return m
}

// PendingEntry is a buffered message and the time it arrived.
type PendingEntry struct {
	Message   Message
	ArrivedAt time.Time
}

// WriteResult is returned by a local write.
type WriteResult struct {
	// Message is the stamped write to hand to the replication transport.
	Message Message
	// Clock is the local clock right after the write.
	Clock clock.VectorClock
}

// ReadResult is returned by a local read.
type ReadResult struct {
	Key    string
	Value  string
	Found  bool
	Origin string
	Clock  clock.VectorClock
}

// Status tells what the engine did with a replicated write.
type Status int

const (
	// Applied means the write was applied on arrival.
	Applied Status = iota
	// Buffered means the write waits for missing dependencies.
	Buffered
	// Ignored means the write was applied or buffered before.
	Ignored
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Buffered:
		return "buffered"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Outcome is the informational result of OnReplicate.
type Outcome struct {
	Status Status
	// Cascaded counts buffered writes that became deliverable and were
	// applied as a consequence of this arrival.
	Cascaded int
}

// Path names the way a write reached the store.
type Path string

const (
	PathLocal   Path = "local"
	PathRemote  Path = "remote"
	PathCascade Path = "cascade"
	PathRescan  Path = "rescan"
)

// Stats is a point-in-time view of the engine.
type Stats struct {
	NodeID        string
	Clock         clock.VectorClock
	Keys          int
	Pending       int
	OldestPending time.Duration
	Applied       uint64
	Buffered      uint64
	Duplicates    uint64
}

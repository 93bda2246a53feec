package node

import (
	"time"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

// messageFromWire converts a replication request to an engine message. A
// missing clock becomes an empty one and fails validation. The returned
// message carries the request identity even when the clock is malformed.
func messageFromWire(req *wire.ReplicateRequest) (causal.Message, error) {
	vc, err := wire.DecodeClock(req.Clock)
	return causal.Message{
		ID:     req.MessageID,
		Sender: req.Sender,
		Key:    req.Key,
		Value:  req.Value,
		Clock:  vc,
	}, err
}

// messageToWire converts an engine message to a replication request.
func messageToWire(msg causal.Message) *wire.ReplicateRequest {
	return &wire.ReplicateRequest{
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Key:       msg.Key,
		Value:     msg.Value,
		Clock:     wire.FromClock(msg.Clock),
	}
}

func statsToWire(s causal.Stats) *wire.StatsResponse {
	return &wire.StatsResponse{
		NodeID:          s.NodeID,
		Clock:           wire.FromClock(s.Clock),
		Keys:            int64(s.Keys),
		Pending:         int64(s.Pending),
		OldestPendingMs: s.OldestPending.Milliseconds(),
		Applied:         s.Applied,
		Buffered:        s.Buffered,
		Duplicates:      s.Duplicates,
	}
}

// StatsFromWire is the inverse of the Stats RPC encoding.
func StatsFromWire(resp *wire.StatsResponse) causal.Stats {
	return causal.Stats{
		NodeID:        resp.NodeID,
		Clock:         wire.ToClock(resp.Clock),
		Keys:          int(resp.Keys),
		Pending:       int(resp.Pending),
		OldestPending: time.Duration(resp.OldestPendingMs) * time.Millisecond,
		Applied:       resp.Applied,
		Buffered:      resp.Buffered,
		Duplicates:    resp.Duplicates,
	}
}

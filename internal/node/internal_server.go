package node

import (
	"context"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

// InternalServer implements the KVInternal gRPC service used between nodes.
type InternalServer struct {
	node *Node
}

// NewInternalServer creates a new internal server instance.
func NewInternalServer(n *Node) *InternalServer {
	return &InternalServer{node: n}
}

// Replicate hands a peer's write to the engine. The reply is the same whether
// the write was applied, buffered or ignored.
func (s *InternalServer) Replicate(ctx context.Context, req *wire.ReplicateRequest) (*wire.ReplicateResponse, error) {
	msg, err := messageFromWire(req)
	if err != nil {
		s.node.reject(msg, err)
		return nil, toStatus(err)
	}
	if _, err := s.node.Replicate(msg); err != nil {
		return nil, toStatus(err)
	}
	return &wire.ReplicateResponse{Status: wire.ReplicateAccepted}, nil
}

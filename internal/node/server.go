package node

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

// Server implements the KVStore gRPC service.
type Server struct {
	node *Node
}

// NewServer creates a new gRPC server instance.
func NewServer(n *Node) *Server {
	return &Server{node: n}
}

// Write handles Write requests.
func (s *Server) Write(ctx context.Context, req *wire.WriteRequest) (*wire.WriteResponse, error) {
	s.node.logger.Debug("write request",
		zap.String("key", req.Key),
		zap.String("client_id", req.ClientID),
		zap.String("request_id", req.RequestID))

	res, err := s.node.Write(req.Key, req.Value)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.WriteResponse{
		MessageID: res.Message.ID,
		Clock:     wire.FromClock(res.Clock),
	}, nil
}

// Read handles Read requests.
func (s *Server) Read(ctx context.Context, req *wire.ReadRequest) (*wire.ReadResponse, error) {
	s.node.logger.Debug("read request",
		zap.String("key", req.Key),
		zap.String("client_id", req.ClientID),
		zap.String("request_id", req.RequestID))

	res, err := s.node.Read(req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &wire.ReadResponse{
		Found:  res.Found,
		Value:  res.Value,
		Origin: res.Origin,
		Clock:  wire.FromClock(res.Clock),
	}, nil
}

// Stats handles Stats requests.
func (s *Server) Stats(ctx context.Context, req *wire.StatsRequest) (*wire.StatsResponse, error) {
	return statsToWire(s.node.Stats()), nil
}

// toStatus maps engine errors to gRPC status codes.
func toStatus(err error) error {
	switch errors.Cause(err) {
	case causal.ErrEmptyKey, causal.ErrUnknownSender, causal.ErrSelfMessage,
		causal.ErrClockDomain, causal.ErrNegativeCounter, causal.ErrSenderCounter,
		wire.ErrMalformedClock:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

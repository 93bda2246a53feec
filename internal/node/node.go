package node

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/api"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/config"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/metrics"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/replication"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

const httpShutdownTimeout = 5 * time.Second

// Node represents a single node in the cluster.
type Node struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	engine    *causal.Engine
	clientMgr *ClientManager
	transport *replication.Transport
	rescan    *replication.RescanLoop

	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server

	stopOnce sync.Once
}

// New creates a node from cfg. cfg must have been adjusted and validated.
func New(cfg *config.Config, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := metrics.New(cfg.NodeID)

	engine, err := causal.NewEngine(
		causal.Config{NodeID: cfg.NodeID, Members: cfg.Members()},
		causal.WithLogger(logger),
		causal.WithMetrics(m),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "node %s", cfg.NodeID)
	}

	clientMgr := NewClientManager()
	n := &Node{
		cfg:       cfg,
		logger:    logger.With(zap.String("node", cfg.NodeID)),
		metrics:   m,
		engine:    engine,
		clientMgr: clientMgr,
		transport: replication.NewTransport(cfg.NodeID, cfg.RemotePeers(), clientMgr,
			replication.WithLogger(logger),
			replication.WithMetrics(m),
			replication.WithSendTimeout(cfg.SendTimeout)),
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
	}
	n.rescan = replication.NewRescanLoop(engine, cfg.RescanInterval, n.logger)

	wire.RegisterKVStoreServer(n.grpcServer, NewServer(n))
	wire.RegisterKVInternalServer(n.grpcServer, NewInternalServer(n))
	healthpb.RegisterHealthServer(n.grpcServer, n.health)
	// Descriptors come from wire.File.
	reflection.Register(n.grpcServer)

	if cfg.HTTPAddr != "" {
		n.httpServer = &http.Server{
			Handler:           api.NewHandler(n, m.Handler(), n.logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return n, nil
}

// ID returns the node id.
func (n *Node) ID() string {
	return n.cfg.NodeID
}

// Engine returns the causal engine of the node.
func (n *Node) Engine() *causal.Engine {
	return n.engine
}

// Metrics returns the node collectors.
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Transport returns the replication transport.
func (n *Node) Transport() *replication.Transport {
	return n.transport
}

// Write applies a client write locally and replicates it in the background.
func (n *Node) Write(key, value string) (causal.WriteResult, error) {
	if err := causal.CheckKey(key); err != nil {
		return causal.WriteResult{}, err
	}
	res := n.engine.LocalWrite(key, value)
	n.transport.Broadcast(res.Message)
	n.logger.Info("write",
		zap.String("key", key),
		zap.String("msg_id", res.Message.ID),
		zap.Stringer("vc", res.Clock))
	return res, nil
}

// Read returns the local value of key.
func (n *Node) Read(key string) (causal.ReadResult, error) {
	if err := causal.CheckKey(key); err != nil {
		return causal.ReadResult{}, err
	}
	return n.engine.Read(key), nil
}

// Replicate validates a write sent by a peer and hands it to the engine.
func (n *Node) Replicate(msg causal.Message) (causal.Outcome, error) {
	if err := n.engine.Validate(msg); err != nil {
		n.reject(msg, err)
		return causal.Outcome{}, err
	}
	out := n.engine.OnReplicate(msg)
	n.logger.Debug("replicated write received",
		zap.String("sender", msg.Sender),
		zap.String("msg_id", msg.ID),
		zap.Stringer("status", out.Status),
		zap.Int("cascaded", out.Cascaded))
	return out, nil
}

func (n *Node) reject(msg causal.Message, err error) {
	n.metrics.Rejected.Inc()
	n.logger.Warn("rejected replicated write",
		zap.String("sender", msg.Sender),
		zap.String("msg_id", msg.ID),
		zap.Error(err))
}

// Stats returns engine counters.
func (n *Node) Stats() causal.Stats {
	return n.engine.Stats()
}

// Pending returns the buffered writes.
func (n *Node) Pending() []causal.PendingEntry {
	return n.engine.Pending()
}

// Start listens on the configured addresses and serves until Stop.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", n.cfg.ListenAddr)
	}
	var httpLis net.Listener
	if n.httpServer != nil {
		httpLis, err = net.Listen("tcp", n.cfg.HTTPAddr)
		if err != nil {
			lis.Close()
			return errors.Wrapf(err, "failed to listen on %s", n.cfg.HTTPAddr)
		}
	}
	return n.Serve(lis, httpLis)
}

// Serve serves gRPC on lis and, when httpLis is not nil and the gateway is
// enabled, HTTP on httpLis. It blocks until Stop.
func (n *Node) Serve(lis, httpLis net.Listener) error {
	n.rescan.Start()
	n.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	n.health.SetServingStatus(wire.KVStoreServiceName, healthpb.HealthCheckResponse_SERVING)

	switch {
	case httpLis == nil:
	case n.httpServer == nil:
		httpLis.Close()
	default:
		go func() {
			n.logger.Info("serving http gateway", zap.String("addr", httpLis.Addr().String()))
			if err := n.httpServer.Serve(httpLis); err != nil && err != http.ErrServerClosed {
				n.logger.Error("http gateway stopped", zap.Error(err))
			}
		}()
	}

	n.logger.Info("starting node",
		zap.String("addr", lis.Addr().String()),
		zap.Strings("members", n.engine.Members()))
	if err := n.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return errors.Wrap(err, "failed to serve")
	}
	return nil
}

// Stop gracefully stops the node. In-flight replication sends are allowed to
// finish within the send timeout.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.logger.Info("stopping node")
		n.health.Shutdown()
		n.rescan.Stop()

		if n.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			if err := n.httpServer.Shutdown(ctx); err != nil {
				n.logger.Warn("http shutdown", zap.Error(err))
			}
			cancel()
		}
		n.grpcServer.GracefulStop()

		n.transport.Wait()
		n.transport.Close()
		n.clientMgr.Close()
	})
}

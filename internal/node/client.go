package node

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/config"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

// ClientManager manages gRPC connections to peer nodes. It is the
// replication.Sender of a node.
type ClientManager struct {
	mu    sync.RWMutex
	conns map[string]*grpc.ClientConn
}

// NewClientManager creates a new client manager.
func NewClientManager() *ClientManager {
	return &ClientManager{conns: make(map[string]*grpc.ClientConn)}
}

// conn returns the connection for addr, creating it on first use.
func (cm *ClientManager) conn(addr string) (*grpc.ClientConn, error) {
	cm.mu.RLock()
	conn, exists := cm.conns[addr]
	cm.mu.RUnlock()

	if exists {
		return conn, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if conn, exists := cm.conns[addr]; exists {
		return conn, nil
	}

	conn, err := newConn(addr)
	if err != nil {
		return nil, err
	}
	cm.conns[addr] = conn
	return conn, nil
}

// GetInternalClient returns an internal gRPC client for the given node address.
func (cm *ClientManager) GetInternalClient(addr string) (wire.KVInternalClient, error) {
	conn, err := cm.conn(addr)
	if err != nil {
		return nil, err
	}
	return wire.NewKVInternalClient(conn), nil
}

// Replicate sends msg to peer.
func (cm *ClientManager) Replicate(ctx context.Context, peer config.Peer, msg causal.Message) error {
	client, err := cm.GetInternalClient(peer.Addr)
	if err != nil {
		return err
	}
	if _, err := client.Replicate(ctx, messageToWire(msg)); err != nil {
		return errors.Wrapf(err, "replicate to %s", peer.ID)
	}
	return nil
}

// Close closes all client connections.
func (cm *ClientManager) Close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for addr, conn := range cm.conns {
		conn.Close()
		delete(cm.conns, addr)
	}
}

func newConn(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	return conn, nil
}

// Client is a client of a single node.
type Client struct {
	conn   *grpc.ClientConn
	kv     wire.KVStoreClient
	health healthpb.HealthClient
}

// Dial creates a client for the node at addr. The connection is established
// lazily.
func Dial(addr string) (*Client, error) {
	conn, err := newConn(addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:   conn,
		kv:     wire.NewKVStoreClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Put writes key=value.
func (c *Client) Put(ctx context.Context, key, value string) (*wire.WriteResponse, error) {
	return c.kv.Write(ctx, &wire.WriteRequest{Key: key, Value: value})
}

// Get reads key.
func (c *Client) Get(ctx context.Context, key string) (*wire.ReadResponse, error) {
	return c.kv.Read(ctx, &wire.ReadRequest{Key: key})
}

// Stats fetches the node counters.
func (c *Client) Stats(ctx context.Context) (causal.Stats, error) {
	resp, err := c.kv.Stats(ctx, &wire.StatsRequest{})
	if err != nil {
		return causal.Stats{}, err
	}
	return StatsFromWire(resp), nil
}

// WaitHealthy polls the health service until the node reports SERVING or ctx
// is done.
func (c *Client) WaitHealthy(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return errors.Wrap(err, "node not healthy")
		case <-ticker.C:
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

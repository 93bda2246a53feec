package replication

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/config"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/metrics"
)

// DefaultSendTimeout bounds a single replication send.
const DefaultSendTimeout = 2 * time.Second

// Sender delivers one message to one peer.
type Sender interface {
	Replicate(ctx context.Context, peer config.Peer, msg causal.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, peer config.Peer, msg causal.Message) error

// Replicate calls f.
func (f SenderFunc) Replicate(ctx context.Context, peer config.Peer, msg causal.Message) error {
	return f(ctx, peer, msg)
}

// Stats are cumulative transport counters.
type Stats struct {
	InFlight int64
	Sent     uint64
	Failed   uint64
	Dropped  uint64 // broadcasts refused after Close
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithMetrics sets the collectors sends are reported to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// Transport fans writes out to the fixed peer set.
type Transport struct {
	self    string
	peers   []config.Peer
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup

	inflight atomic.Int64
	sent     atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// NewTransport creates a transport for node self. Entries of peers with the
// id self are ignored.
func NewTransport(self string, peers []config.Peer, sender Sender, opts ...Option) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		self:    self,
		sender:  sender,
		timeout: DefaultSendTimeout,
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, p := range peers {
		if p.ID != self {
			t.peers = append(t.peers, p)
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("node", self))
	return t
}

// Peers returns the peers writes are sent to.
func (t *Transport) Peers() []config.Peer {
	out := make([]config.Peer, len(t.peers))
	copy(out, t.peers)
	return out
}

// Broadcast sends msg to every peer in the background and returns the number
// of sends started.
func (t *Transport) Broadcast(msg causal.Message) int {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.dropped.Inc()
		t.logger.Warn("broadcast after close dropped", zap.String("msg_id", msg.ID))
		return 0
	}
	t.wg.Add(len(t.peers))
	t.mu.Unlock()

	for _, peer := range t.peers {
		go t.send(peer, msg.Copy())
	}
	return len(t.peers)
}

func (t *Transport) send(peer config.Peer, msg causal.Message) {
	defer t.wg.Done()
	t.inflight.Inc()
	defer t.inflight.Dec()

	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	start := time.Now()
	err := t.sender.Replicate(ctx, peer, msg)
	if t.metrics != nil {
		t.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		t.failed.Inc()
		if t.metrics != nil {
			t.metrics.Broadcasts.WithLabelValues(peer.ID, metrics.ResultError).Inc()
		}
		t.logger.Warn("replication send failed",
			zap.String("peer", peer.ID),
			zap.String("addr", peer.Addr),
			zap.String("msg_id", msg.ID),
			zap.String("key", msg.Key),
			zap.Error(err))
		return
	}

	t.sent.Inc()
	if t.metrics != nil {
		t.metrics.Broadcasts.WithLabelValues(peer.ID, metrics.ResultOK).Inc()
	}
	t.logger.Debug("replicated write",
		zap.String("peer", peer.ID),
		zap.String("msg_id", msg.ID),
		zap.Duration("took", time.Since(start)))
}

// Wait blocks until every started send has finished.
func (t *Transport) Wait() {
	t.wg.Wait()
}

// Close refuses new broadcasts, cancels in-flight sends and waits for them.
func (t *Transport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

// Stats returns the transport counters.
func (t *Transport) Stats() Stats {
	return Stats{
		InFlight: t.inflight.Load(),
		Sent:     t.sent.Load(),
		Failed:   t.failed.Load(),
		Dropped:  t.dropped.Load(),
	}
}

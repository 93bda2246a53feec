package causal

import (
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/metrics"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/storage"
)

// Config is the fixed identity of a node inside its cluster.
type Config struct {
	NodeID  string
	Members []string // every node id of the cluster, including NodeID
}

// ApplyHook observes every write applied to the store. It runs under the
// engine lock and must not call back into the engine.
type ApplyHook func(msg Message, path Path)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the collectors the engine reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStore replaces the default in-memory store.
func WithStore(s storage.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithApplyHook registers a hook called for each applied write.
func WithApplyHook(h ApplyHook) Option {
	return func(e *Engine) { e.hook = h }
}

// WithClock overrides time.Now for pending-age bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the causal delivery engine of one node.
type Engine struct {
	nodeID  string
	members mapset.Set[string]

	mu      sync.Mutex
	local   clock.VectorClock
	store   storage.Store
	pending []PendingEntry

	applied    uint64
	buffered   uint64
	duplicates uint64

	logger  *zap.Logger
	metrics *metrics.Metrics
	hook    ApplyHook
	now     func() time.Time
}

// NewEngine creates an engine for cfg.NodeID with a zero clock over
// cfg.Members.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	members := mapset.NewThreadUnsafeSet[string]()
	for _, id := range cfg.Members {
		if id == "" {
			return nil, errors.Wrap(ErrInvalidMembers, "empty node id")
		}
		if !members.Add(id) {
			return nil, errors.Wrapf(ErrInvalidMembers, "duplicate node id %q", id)
		}
	}
	if !members.Contains(cfg.NodeID) {
		return nil, errors.Wrapf(ErrMissingSelf, "node %q", cfg.NodeID)
	}

	e := &Engine{
		nodeID:  cfg.NodeID,
		members: members,
		local:   clock.NewForMembers(cfg.Members),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = storage.NewInMemoryStore()
	}
	e.logger = e.logger.With(zap.String("node", e.nodeID))
	return e, nil
}

// NodeID returns the id of the node owning the engine.
func (e *Engine) NodeID() string {
	return e.nodeID
}

// Members returns the cluster membership in sorted order.
func (e *Engine) Members() []string {
	ids := e.members.ToSlice()
	sort.Strings(ids)
	return ids
}

// LocalWrite applies a client write, stamping it with the next counter of
// this node. The returned message must be replicated by the caller once this
// call has returned. The pending buffer is left alone: peers only send writes
// that depend on local writes they have already received from this node.
func (e *Engine) LocalWrite(key, value string) WriteResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.local.Increment(e.nodeID)
	msg := newMessage(e.nodeID, key, value, e.local.Copy())
	e.store.Put(key, value, e.nodeID, msg.Clock)
	e.recordApplied(msg, PathLocal)

	e.logger.Debug("local write",
		zap.String("key", key),
		zap.String("msg_id", msg.ID),
		zap.Stringer("vc", e.local))

	return WriteResult{
		Message: msg.Copy(),
		Clock:   e.local.Copy(),
	}
}

// OnReplicate handles a write replicated from a peer. The message must have
// passed Validate.
func (e *Engine) OnReplicate(msg Message) Outcome {
	msg = msg.Copy()

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.local.Classify(msg.Clock, msg.Sender) {
	case clock.Duplicate:
		e.recordDuplicate(msg, "already applied")
		return Outcome{Status: Ignored}

	case clock.Deliverable:
		e.applyLocked(msg, PathRemote)
		return Outcome{Status: Applied, Cascaded: e.drainLocked(PathCascade)}

	default:
		if e.isPendingLocked(msg) {
			e.recordDuplicate(msg, "already pending")
			return Outcome{Status: Ignored}
		}
		e.pending = append(e.pending, PendingEntry{Message: msg, ArrivedAt: e.now()})
		e.buffered++
		if e.metrics != nil {
			e.metrics.Buffered.Inc()
		}
		e.updatePendingGaugesLocked()
		e.logger.Info("buffered replicated write",
			zap.String("sender", msg.Sender),
			zap.String("key", msg.Key),
			zap.String("msg_id", msg.ID),
			zap.Stringer("msg_vc", msg.Clock),
			zap.Stringer("vc", e.local),
			zap.Stringer("relation", msg.Clock.Compare(e.local)),
			zap.Int("pending", len(e.pending)))
		return Outcome{Status: Buffered}
	}
}

// Read returns the current value of key and the local clock. Writes still
// waiting in the pending buffer are not visible.
func (e *Engine) Read(key string) ReadResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := ReadResult{Key: key, Clock: e.local.Copy()}
	if entry, ok := e.store.Get(key); ok {
		res.Value = entry.Value
		res.Origin = entry.Origin
		res.Found = true
	}
	return res
}

// Rescan re-evaluates every buffered write against the current clock and
// applies the deliverable ones. It returns the number of writes applied.
func (e *Engine) Rescan() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.drainLocked(PathRescan)
	e.updatePendingGaugesLocked()
	if n > 0 {
		e.logger.Info("rescan delivered buffered writes",
			zap.Int("delivered", n),
			zap.Int("pending", len(e.pending)),
			zap.Stringer("vc", e.local))
	}
	return n
}

// Clock returns a snapshot of the local clock.
func (e *Engine) Clock() clock.VectorClock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.Copy()
}

// Stats returns counters and buffer information.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		NodeID:        e.nodeID,
		Clock:         e.local.Copy(),
		Keys:          e.store.Len(),
		Pending:       len(e.pending),
		OldestPending: e.oldestPendingLocked(),
		Applied:       e.applied,
		Buffered:      e.buffered,
		Duplicates:    e.duplicates,
	}
}

// Pending returns a copy of the buffered writes in arrival order.
func (e *Engine) Pending() []PendingEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]PendingEntry, len(e.pending))
	for i, p := range e.pending {
		out[i] = PendingEntry{Message: p.Message.Copy(), ArrivedAt: p.ArrivedAt}
	}
	return out
}

// Snapshot returns a copy of the whole store.
func (e *Engine) Snapshot() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return storage.Snapshot(e.store)
}

// Validate rejects messages that do not fit the cluster: they never reach
// OnReplicate.
func (e *Engine) Validate(msg Message) error {
	if err := CheckKey(msg.Key); err != nil {
		return err
	}
	if msg.Sender == "" || !e.members.Contains(msg.Sender) {
		return errors.Wrapf(ErrUnknownSender, "sender %q", msg.Sender)
	}
	if msg.Sender == e.nodeID {
		return errors.WithStack(ErrSelfMessage)
	}
	if len(msg.Clock) != e.members.Cardinality() {
		return errors.Wrapf(ErrClockDomain, "got %d entries, want %d", len(msg.Clock), e.members.Cardinality())
	}
	for id, counter := range msg.Clock {
		if !e.members.Contains(id) {
			return errors.Wrapf(ErrClockDomain, "unknown node %q", id)
		}
		if counter < 0 {
			return errors.Wrapf(ErrNegativeCounter, "node %q: %d", id, counter)
		}
	}
	if msg.Seq() < 1 {
		return errors.WithStack(ErrSenderCounter)
	}
	return nil
}

// applyLocked applies a deliverable remote write.
func (e *Engine) applyLocked(msg Message, path Path) {
	if prev, ok := e.store.Get(msg.Key); ok && prev.Version.IsConcurrent(msg.Clock) {
		// Last applied wins; the other node may keep prev.
		e.logger.Debug("replicated write replaces a concurrent one",
			zap.String("key", msg.Key),
			zap.String("sender", msg.Sender),
			zap.String("replaced_origin", prev.Origin),
			zap.Stringer("replaced_vc", prev.Version),
			zap.Stringer("msg_vc", msg.Clock))
	}
	e.store.Put(msg.Key, msg.Value, msg.Sender, msg.Clock)
	e.local.Merge(msg.Clock)
	e.recordApplied(msg, path)
	e.logger.Debug("applied replicated write",
		zap.String("path", string(path)),
		zap.String("sender", msg.Sender),
		zap.String("key", msg.Key),
		zap.String("msg_id", msg.ID),
		zap.Stringer("vc", e.local))
}

// drainLocked delivers buffered writes until a full pass over the buffer
// delivers nothing. The buffer is compacted in place.
func (e *Engine) drainLocked(path Path) int {
	if len(e.pending) == 0 {
		return 0
	}

	delivered := 0
	for {
		progressed := false
		kept := e.pending[:0]
		for _, p := range e.pending {
			switch e.local.Classify(p.Message.Clock, p.Message.Sender) {
			case clock.Deliverable:
				e.applyLocked(p.Message, path)
				delivered++
				progressed = true
			case clock.Duplicate:
				// Same write already applied through another copy.
				e.recordDuplicate(p.Message, "pending copy already applied")
				progressed = true
			default:
				kept = append(kept, p)
			}
		}
		for i := len(kept); i < len(e.pending); i++ {
			e.pending[i] = PendingEntry{}
		}
		e.pending = kept
		if !progressed || len(e.pending) == 0 {
			break
		}
	}

	e.updatePendingGaugesLocked()
	return delivered
}

func (e *Engine) isPendingLocked(msg Message) bool {
	seq := msg.Seq()
	for _, p := range e.pending {
		if p.Message.Sender == msg.Sender && p.Message.Seq() == seq {
			return true
		}
	}
	return false
}

func (e *Engine) oldestPendingLocked() time.Duration {
	if len(e.pending) == 0 {
		return 0
	}
	oldest := e.pending[0].ArrivedAt
	for _, p := range e.pending[1:] {
		if p.ArrivedAt.Before(oldest) {
			oldest = p.ArrivedAt
		}
	}
	return e.now().Sub(oldest)
}

func (e *Engine) recordApplied(msg Message, path Path) {
	e.applied++
	if e.metrics != nil {
		e.metrics.Applied.WithLabelValues(string(path)).Inc()
	}
	if e.hook != nil {
		e.hook(msg.Copy(), path)
	}
}

func (e *Engine) recordDuplicate(msg Message, reason string) {
	e.duplicates++
	if e.metrics != nil {
		e.metrics.Duplicates.Inc()
	}
	e.logger.Debug("ignored replicated write",
		zap.String("reason", reason),
		zap.String("sender", msg.Sender),
		zap.Int64("seq", msg.Seq()),
		zap.String("msg_id", msg.ID))
}

func (e *Engine) updatePendingGaugesLocked() {
	if e.metrics == nil {
		return
	}
	e.metrics.PendingMessages.Set(float64(len(e.pending)))
	e.metrics.OldestPendingSeconds.Set(e.oldestPendingLocked().Seconds())
}

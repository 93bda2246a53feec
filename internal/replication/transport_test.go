package replication

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/causal"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/config"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/metrics"
)

var peers = []config.Peer{
	{ID: "n1", Addr: "127.0.0.1:7001"},
	{ID: "n2", Addr: "127.0.0.1:7002"},
	{ID: "n3", Addr: "127.0.0.1:7003"},
}

type recordingSender struct {
	mu    sync.Mutex
	calls map[string][]causal.Message
	fail  map[string]error
	block map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		calls: map[string][]causal.Message{},
		fail:  map[string]error{},
		block: map[string]bool{},
	}
}

func (s *recordingSender) Replicate(ctx context.Context, peer config.Peer, msg causal.Message) error {
	s.mu.Lock()
	s.calls[peer.ID] = append(s.calls[peer.ID], msg)
	err := s.fail[peer.ID]
	block := s.block[peer.ID]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *recordingSender) peersCalled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.calls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func testMessage() causal.Message {
	return causal.Message{
		ID:     "m-1",
		Sender: "n1",
		Key:    "x",
		Value:  "A",
		Clock:  clock.VectorClock{"n1": 1, "n2": 0, "n3": 0},
	}
}

func TestBroadcast_SkipsSelf(t *testing.T) {
	sender := newRecordingSender()
	tr := NewTransport("n1", peers, sender, WithLogger(zaptest.NewLogger(t)))
	defer tr.Close()

	assert.Len(t, tr.Peers(), 2)
	assert.Equal(t, 2, tr.Broadcast(testMessage()))
	tr.Wait()

	assert.Equal(t, []string{"n2", "n3"}, sender.peersCalled())
	assert.Equal(t, Stats{Sent: 2}, tr.Stats())
}

func TestBroadcast_FailedPeerDoesNotAffectOthers(t *testing.T) {
	sender := newRecordingSender()
	sender.fail["n2"] = errors.New("connection refused")
	m := metrics.New("n1")

	tr := NewTransport("n1", peers, sender,
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(m))
	defer tr.Close()

	tr.Broadcast(testMessage())
	tr.Wait()

	stats := tr.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Broadcasts.WithLabelValues("n2", metrics.ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Broadcasts.WithLabelValues("n3", metrics.ResultOK)))
	assert.Equal(t, uint64(2), sendDurationSamples(t, m))
}

func sendDurationSamples(t *testing.T, m *metrics.Metrics) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "causalkv_replication_send_duration_seconds" {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("send duration histogram not registered")
	return 0
}

func TestBroadcast_DoesNotWaitForSlowPeer(t *testing.T) {
	sender := newRecordingSender()
	sender.block["n3"] = true

	tr := NewTransport("n1", peers, sender, WithSendTimeout(50*time.Millisecond))
	defer tr.Close()

	start := time.Now()
	tr.Broadcast(testMessage())
	assert.Less(t, time.Since(start), 50*time.Millisecond, "broadcast must return before the send timeout")

	tr.Wait()
	stats := tr.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(1), stats.Failed, "blocked send must time out")
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestBroadcast_MessageIsCopiedPerPeer(t *testing.T) {
	sender := newRecordingSender()
	tr := NewTransport("n1", peers, sender)
	defer tr.Close()

	msg := testMessage()
	tr.Broadcast(msg)
	msg.Clock["n1"] = 99
	tr.Wait()

	for _, id := range []string{"n2", "n3"} {
		require.Len(t, sender.calls[id], 1)
		assert.Equal(t, int64(1), sender.calls[id][0].Clock["n1"])
	}
}

func TestClose_CancelsAndRefuses(t *testing.T) {
	sender := newRecordingSender()
	sender.block["n2"] = true
	sender.block["n3"] = true

	tr := NewTransport("n1", peers, sender, WithSendTimeout(time.Minute))
	tr.Broadcast(testMessage())

	done := make(chan struct{})
	go func() {
		tr.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not cancel blocked sends")
	}

	assert.Equal(t, 0, tr.Broadcast(testMessage()))
	stats := tr.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestBroadcast_NoPeers(t *testing.T) {
	tr := NewTransport("n1", peers[:1], newRecordingSender())
	defer tr.Close()

	assert.Equal(t, 0, tr.Broadcast(testMessage()))
	tr.Wait()
}

func TestSenderFunc(t *testing.T) {
	var got config.Peer
	f := SenderFunc(func(_ context.Context, peer config.Peer, _ causal.Message) error {
		got = peer
		return nil
	})
	require.NoError(t, f.Replicate(context.Background(), peers[1], testMessage()))
	assert.Equal(t, "n2", got.ID)
}

package node

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/clock"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/config"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

const waitFor = 5 * time.Second

type testCluster struct {
	nodes   []*Node
	clients []*Client
	peers   []config.Peer
	http    []string
}

// startCluster runs size nodes on loopback ports. With gateway set every
// node also serves HTTP.
func startCluster(t *testing.T, size int, gateway bool) *testCluster {
	t.Helper()

	c := &testCluster{}
	listeners := make([]net.Listener, size)
	httpListeners := make([]net.Listener, size)
	for i := 0; i < size; i++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners[i] = lis
		c.peers = append(c.peers, config.Peer{ID: fmt.Sprintf("n%d", i+1), Addr: lis.Addr().String()})

		if gateway {
			hl, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			httpListeners[i] = hl
			c.http = append(c.http, "http://"+hl.Addr().String())
		}
	}

	for i := 0; i < size; i++ {
		cfg := &config.Config{
			NodeID:         c.peers[i].ID,
			ListenAddr:     c.peers[i].Addr,
			Peers:          c.peers,
			SendTimeout:    time.Second,
			RescanInterval: 50 * time.Millisecond,
		}
		if gateway {
			cfg.HTTPAddr = httpListeners[i].Addr().String()
		}
		cfg.Adjust()
		require.NoError(t, cfg.Validate())

		n, err := New(cfg, zaptest.NewLogger(t).Named(cfg.NodeID))
		require.NoError(t, err)
		c.nodes = append(c.nodes, n)

		lis, hl := listeners[i], httpListeners[i]
		go func() {
			if err := n.Serve(lis, hl); err != nil {
				t.Errorf("node %s: %v", n.ID(), err)
			}
		}()
		t.Cleanup(n.Stop)
	}

	for _, p := range c.peers {
		client, err := Dial(p.Addr)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		require.NoError(t, client.WaitHealthy(ctx))
		cancel()
		c.clients = append(c.clients, client)
	}
	return c
}

func (c *testCluster) readEventually(t *testing.T, idx int, key, want string) *wire.ReadResponse {
	t.Helper()
	var last *wire.ReadResponse
	require.Eventually(t, func() bool {
		resp, err := c.clients[idx].Get(context.Background(), key)
		if err != nil {
			return false
		}
		last = resp
		return resp.Found && resp.Value == want
	}, waitFor, 10*time.Millisecond, "node %d never saw %s=%s", idx+1, key, want)
	return last
}

func TestCluster_WriteReplicatesToAllPeers(t *testing.T) {
	c := startCluster(t, 3, false)
	ctx := context.Background()

	resp, err := c.clients[0].Put(ctx, "x", "A")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.MessageID)
	assert.True(t, wire.ToClock(resp.Clock).Equal(clock.VectorClock{"n1": 1, "n2": 0, "n3": 0}))

	for i := 1; i < 3; i++ {
		got := c.readEventually(t, i, "x", "A")
		assert.Equal(t, "n1", got.Origin)
		assert.Equal(t, int64(1), wire.ToClock(got.Clock).Get("n1"))
	}
}

func TestCluster_CausalChainAcrossNodes(t *testing.T) {
	c := startCluster(t, 3, false)
	ctx := context.Background()

	_, err := c.clients[0].Put(ctx, "k1", "v1")
	require.NoError(t, err)
	c.readEventually(t, 1, "k1", "v1")

	// v2 is written after n2 observed v1, so every node must end with v2.
	resp, err := c.clients[1].Put(ctx, "k1", "v2")
	require.NoError(t, err)
	assert.True(t, wire.ToClock(resp.Clock).Equal(clock.VectorClock{"n1": 1, "n2": 1, "n3": 0}))

	for i := 0; i < 3; i++ {
		c.readEventually(t, i, "k1", "v2")
	}
	for i, n := range c.nodes {
		assert.True(t, n.Engine().Clock().Equal(clock.VectorClock{"n1": 1, "n2": 1, "n3": 0}), "node %d", i+1)
	}
}

func TestCluster_OutOfOrderReplicationIsBuffered(t *testing.T) {
	c := startCluster(t, 3, false)
	ctx := context.Background()

	internal, err := c.nodes[0].clientMgr.GetInternalClient(c.peers[2].Addr)
	require.NoError(t, err)

	second := &wire.ReplicateRequest{
		MessageID: "m-2", Sender: "n1", Key: "x", Value: "second",
		Clock: wire.FromClock(clock.VectorClock{"n1": 2, "n2": 0, "n3": 0}),
	}
	first := &wire.ReplicateRequest{
		MessageID: "m-1", Sender: "n1", Key: "x", Value: "first",
		Clock: wire.FromClock(clock.VectorClock{"n1": 1, "n2": 0, "n3": 0}),
	}

	resp, err := internal.Replicate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, wire.ReplicateAccepted, resp.Status)

	stats, err := c.clients[2].Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	read, err := c.clients[2].Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, read.Found, "buffered write must not be visible")

	resp, err = internal.Replicate(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, wire.ReplicateAccepted, resp.Status)

	stats, err = c.clients[2].Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, uint64(2), stats.Applied)
	assert.Equal(t, uint64(1), stats.Buffered)
	assert.True(t, stats.Clock.Equal(clock.VectorClock{"n1": 2, "n2": 0, "n3": 0}))

	// Re-delivery is accepted and ignored.
	_, err = internal.Replicate(ctx, first)
	require.NoError(t, err)
	stats, err = c.clients[2].Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Applied)
	assert.Equal(t, uint64(1), stats.Duplicates)
}

func TestInternalServer_RejectsMalformed(t *testing.T) {
	c := startCluster(t, 2, false)
	ctx := context.Background()

	internal, err := c.nodes[0].clientMgr.GetInternalClient(c.peers[1].Addr)
	require.NoError(t, err)

	bad := []*wire.ReplicateRequest{
		{Sender: "n1", Key: "x", Value: "v"},
		{Sender: "n7", Key: "x", Value: "v", Clock: wire.FromClock(clock.VectorClock{"n1": 1, "n2": 0})},
		{Sender: "n2", Key: "x", Value: "v", Clock: wire.FromClock(clock.VectorClock{"n1": 0, "n2": 1})},
		{Sender: "n1", Key: "", Value: "v", Clock: wire.FromClock(clock.VectorClock{"n1": 1, "n2": 0})},
		{Sender: "n1", Key: "x", Value: "v", Clock: &wire.VectorClock{Entries: []*wire.ClockEntry{
			{NodeID: "n1", Counter: 1}, {NodeID: "n2", Counter: 0}, {NodeID: "n2", Counter: 9},
		}}},
		{Sender: "n1", Key: "x", Value: "v", Clock: &wire.VectorClock{Entries: []*wire.ClockEntry{
			{NodeID: "n1", Counter: 1}, {NodeID: "", Counter: 0},
		}}},
	}
	for _, req := range bad {
		_, err := internal.Replicate(ctx, req)
		require.Error(t, err)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	}
	assert.Equal(t, float64(len(bad)), testutil.ToFloat64(c.nodes[1].Metrics().Rejected))
	assert.Zero(t, c.nodes[1].Stats().Applied)
	assert.Zero(t, c.nodes[1].Stats().Pending)
}

func TestServer_EmptyKey(t *testing.T) {
	c := startCluster(t, 1, false)

	_, err := c.clients[0].Put(context.Background(), "", "v")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.clients[0].Get(context.Background(), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCluster_UnreachablePeerDoesNotBlockWrite(t *testing.T) {
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	require.NoError(t, dead.Close())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := &config.Config{
		NodeID:      "n1",
		ListenAddr:  lis.Addr().String(),
		Peers:       []config.Peer{{ID: "n2", Addr: deadAddr}},
		SendTimeout: 200 * time.Millisecond,
	}
	cfg.Adjust()
	n, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	go n.Serve(lis, nil)
	t.Cleanup(n.Stop)

	start := time.Now()
	res, err := n.Write("x", "A")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, int64(1), res.Clock.Get("n1"))

	n.Transport().Wait()
	assert.Equal(t, uint64(1), n.Transport().Stats().Failed)

	read, err := n.Read("x")
	require.NoError(t, err)
	assert.Equal(t, "A", read.Value)
}

func TestCluster_HTTPGateway(t *testing.T) {
	c := startCluster(t, 2, true)

	req, err := http.NewRequest(http.MethodPut, c.http[0]+"/put/k1", jsonBody(t, map[string]string{"value": "v1"}))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(c.http[1] + "/get/k1")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var out struct {
			Value *string `json:"value"`
		}
		if json.NewDecoder(resp.Body).Decode(&out) != nil || out.Value == nil {
			return false
		}
		return *out.Value == "v1"
	}, waitFor, 10*time.Millisecond)

	resp, err = http.Get(c.http[1] + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNode_StopIsIdempotent(t *testing.T) {
	cfg := &config.Config{NodeID: "n1"}
	cfg.Adjust()
	n, err := New(cfg, nil)
	require.NoError(t, err)
	n.Stop()
	n.Stop()
}

func TestServer_ReflectionDescribesServices(t *testing.T) {
	c := startCluster(t, 1, false)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	stream, err := reflectionpb.NewServerReflectionClient(c.clients[0].conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_ListServices{},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)
	var names []string
	for _, s := range resp.GetListServicesResponse().GetService() {
		names = append(names, s.GetName())
	}
	assert.Contains(t, names, wire.KVStoreServiceName)
	assert.Contains(t, names, wire.KVInternalServiceName)

	for _, symbol := range []string{wire.KVStoreServiceName, wire.KVInternalServiceName} {
		require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
			MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: symbol},
		}))
		resp, err := stream.Recv()
		require.NoError(t, err)
		require.Nil(t, resp.GetErrorResponse(), "symbol %s", symbol)

		files := resp.GetFileDescriptorResponse().GetFileDescriptorProto()
		require.NotEmpty(t, files)
		var fd descriptorpb.FileDescriptorProto
		require.NoError(t, proto.Unmarshal(files[0], &fd))
		assert.Equal(t, "causalkv.v1", fd.GetPackage())
		assert.Len(t, fd.GetService(), 2)
	}
	require.NoError(t, stream.CloseSend())
}

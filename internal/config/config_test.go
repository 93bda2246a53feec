package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Peer
		wantErr bool
	}{
		{
			name:  "empty string",
			input: "",
			want:  []Peer{},
		},
		{
			name:  "single peer",
			input: "n1=127.0.0.1:50051",
			want: []Peer{
				{ID: "n1", Addr: "127.0.0.1:50051"},
			},
		},
		{
			name:  "multiple peers",
			input: "n1=127.0.0.1:50051,n2=127.0.0.1:50052,n3=127.0.0.1:50053",
			want: []Peer{
				{ID: "n1", Addr: "127.0.0.1:50051"},
				{ID: "n2", Addr: "127.0.0.1:50052"},
				{ID: "n3", Addr: "127.0.0.1:50053"},
			},
		},
		{
			name:  "with spaces",
			input: "n1 = 127.0.0.1:50051 , n2 = 127.0.0.1:50052",
			want: []Peer{
				{ID: "n1", Addr: "127.0.0.1:50051"},
				{ID: "n2", Addr: "127.0.0.1:50052"},
			},
		},
		{
			name:  "url addresses",
			input: "n1=http://node1:8000/,n2=node2:8000",
			want: []Peer{
				{ID: "n1", Addr: "node1:8000"},
				{ID: "n2", Addr: "node2:8000"},
			},
		},
		{
			name:    "invalid format - no equals",
			input:   "n1:127.0.0.1:50051",
			wantErr: true,
		},
		{
			name:    "invalid format - empty ID",
			input:   "=127.0.0.1:50051",
			wantErr: true,
		},
		{
			name:    "invalid format - empty addr",
			input:   "n1=",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeers(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePeers() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if len(got) != len(tt.want) {
					t.Errorf("ParsePeers() length = %d, want %d", len(got), len(tt.want))
					return
				}
				for i := range got {
					if got[i].ID != tt.want[i].ID || got[i].Addr != tt.want[i].Addr {
						t.Errorf("ParsePeers()[%d] = %v, want %v", i, got[i], tt.want[i])
					}
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	data := `
node-id = "n2"
listen = "127.0.0.1:7002"
http-listen = "127.0.0.1:8002"
send-timeout = "500ms"
log-format = "json"

[[peers]]
id = "n1"
addr = "127.0.0.1:7001"

[[peers]]
id = "n2"
addr = "127.0.0.1:7002"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Adjust()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "n2", cfg.NodeID)
	assert.Equal(t, "127.0.0.1:8002", cfg.HTTPAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.SendTimeout)
	assert.Equal(t, time.Second, cfg.RescanInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"n1", "n2"}, cfg.Members())
	assert.Equal(t, []Peer{{ID: "n1", Addr: "127.0.0.1:7001"}}, cfg.RemotePeers())
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	require.NoError(t, os.WriteFile(path, []byte("node-id = \"n1\"\nvnodes = 128\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vnodes")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvNodeID:   "node2",
		EnvAllNodes: `{"node3": "http://node3:8000", "node1": "http://node1:8000", "node2": "http://node2:8000"}`,
	}
	cfg := &Config{NodeID: "from-flag"}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "node2", cfg.NodeID)
	assert.Equal(t, []Peer{
		{ID: "node1", Addr: "node1:8000"},
		{ID: "node2", Addr: "node2:8000"},
		{ID: "node3", Addr: "node3:8000"},
	}, cfg.Peers)

	cfg.Adjust()
	assert.Equal(t, "node2:8000", cfg.ListenAddr, "listen defaults to own peer entry")
	assert.Equal(t, []string{"node1", "node2", "node3"}, cfg.Members())
}

func TestApplyEnv_BadJSON(t *testing.T) {
	cfg := &Config{}
	err := cfg.ApplyEnv(func(k string) string {
		if k == EnvAllNodes {
			return "[not an object"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestApplyEnv_Unset(t *testing.T) {
	cfg := &Config{NodeID: "n1", Peers: []Peer{{ID: "n1", Addr: "a"}}}
	require.NoError(t, cfg.ApplyEnv(func(string) string { return "" }))
	assert.Equal(t, "n1", cfg.NodeID)
	assert.Len(t, cfg.Peers, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{NodeID: "n1", ListenAddr: ":7001", Peers: []Peer{{ID: "n2", Addr: ":7002"}}},
		},
		{
			name:    "missing node id",
			cfg:     Config{ListenAddr: ":7001"},
			wantErr: true,
		},
		{
			name:    "duplicate peer",
			cfg:     Config{NodeID: "n1", ListenAddr: ":7001", Peers: []Peer{{ID: "n2", Addr: "a"}, {ID: "n2", Addr: "b"}}},
			wantErr: true,
		},
		{
			name:    "empty peer address",
			cfg:     Config{NodeID: "n1", ListenAddr: ":7001", Peers: []Peer{{ID: "n2"}}},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			cfg:     Config{NodeID: "n1", ListenAddr: ":7001", SendTimeout: -time.Second},
			wantErr: true,
		},
		{
			name:    "unknown log format",
			cfg:     Config{NodeID: "n1", ListenAddr: ":7001", LogFormat: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMembers_SelfOnly(t *testing.T) {
	cfg := &Config{NodeID: "solo"}
	assert.Equal(t, []string{"solo"}, cfg.Members())
	assert.Empty(t, cfg.RemotePeers())
}

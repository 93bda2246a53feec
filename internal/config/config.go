package config

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Environment variables read by ApplyEnv.
const (
	EnvNodeID   = "NODE_ID"
	EnvAllNodes = "ALL_NODES"
)

const (
	defaultListen         = "127.0.0.1:7001"
	defaultSendTimeout    = 2 * time.Second
	defaultRescanInterval = time.Second
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
)

// Peer represents a node in the cluster.
type Peer struct {
	ID   string `toml:"id"`
	Addr string `toml:"addr"`
}

// Config holds the node configuration. The membership is fixed for the
// lifetime of the process.
type Config struct {
	NodeID     string `toml:"node-id"`
	ListenAddr string `toml:"listen"`
	// HTTPAddr enables the JSON gateway when set.
	HTTPAddr string `toml:"http-listen"`
	// Peers may include the node itself; it is skipped when sending.
	Peers []Peer `toml:"peers"`

	SendTimeout    time.Duration `toml:"send-timeout"`
	RescanInterval time.Duration `toml:"rescan-interval"`

	LogLevel  string `toml:"log-level"`
	LogFormat string `toml:"log-format"`
}

// Load reads a TOML config file. Keys the Config does not know are an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv overrides the node id and peer list from NODE_ID and ALL_NODES.
// ALL_NODES is a JSON object mapping node id to address.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if id := strings.TrimSpace(getenv(EnvNodeID)); id != "" {
		c.NodeID = id
	}
	raw := strings.TrimSpace(getenv(EnvAllNodes))
	if raw == "" {
		return nil
	}

	var nodes map[string]string
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		return errors.Wrapf(err, "parse %s", EnvAllNodes)
	}
	peers := make([]Peer, 0, len(nodes))
	for id, addr := range nodes {
		peers = append(peers, Peer{ID: id, Addr: trimScheme(addr)})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	c.Peers = peers
	return nil
}

// Adjust fills unset fields with defaults.
func (c *Config) Adjust() {
	if c.ListenAddr == "" {
		if self, ok := c.Peer(c.NodeID); ok {
			c.ListenAddr = self.Addr
		}
	}
	adjustString(&c.ListenAddr, defaultListen)
	adjustDuration(&c.SendTimeout, defaultSendTimeout)
	adjustDuration(&c.RescanInterval, defaultRescanInterval)
	adjustString(&c.LogLevel, defaultLogLevel)
	adjustString(&c.LogFormat, defaultLogFormat)
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("node id is required")
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	seen := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			return errors.Errorf("peer ID and address cannot be empty: %q=%q", p.ID, p.Addr)
		}
		if seen[p.ID] {
			return errors.Errorf("duplicate peer %s", p.ID)
		}
		seen[p.ID] = true
	}
	if c.SendTimeout < 0 || c.RescanInterval < 0 {
		return errors.New("durations must not be negative")
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Peer returns the peer entry with the given id.
func (c *Config) Peer(id string) (Peer, bool) {
	for _, p := range c.Peers {
		if p.ID == id {
			return p, true
		}
	}
	return Peer{}, false
}

// RemotePeers returns the peers other than the node itself.
func (c *Config) RemotePeers() []Peer {
	out := make([]Peer, 0, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID != c.NodeID {
			out = append(out, p)
		}
	}
	return out
}

// Members returns the sorted ids of every node in the cluster, self included.
func (c *Config) Members() []string {
	ids := []string{c.NodeID}
	for _, p := range c.Peers {
		if p.ID != c.NodeID {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])

		if id == "" || addr == "" {
			return nil, errors.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: trimScheme(addr),
		})
	}

	return peers, nil
}

// trimScheme turns "http://host:port" into "host:port".
func trimScheme(addr string) string {
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	return strings.TrimSuffix(addr, "/")
}

func adjustString(v *string, defValue string) {
	if len(*v) == 0 {
		*v = defValue
	}
}

func adjustDuration(v *time.Duration, defValue time.Duration) {
	if *v == 0 {
		*v = defValue
	}
}

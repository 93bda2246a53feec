package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/config"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/logutil"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/node"
)

type serveFlags struct {
	configFile     string
	nodeID         string
	listen         string
	httpListen     string
	peers          string
	sendTimeout    time.Duration
	rescanInterval time.Duration
	logLevel       string
	logFormat      string
}

func newServeCommand() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "TOML config file")
	fs.StringVar(&f.nodeID, "node-id", "", "node identifier (env NODE_ID)")
	fs.StringVar(&f.listen, "listen", "", "gRPC listen address")
	fs.StringVar(&f.httpListen, "http-listen", "", "HTTP gateway listen address, disabled when empty")
	fs.StringVar(&f.peers, "peers", "", "cluster members as id=addr,... (env ALL_NODES)")
	fs.DurationVar(&f.sendTimeout, "send-timeout", 0, "timeout of one replication send")
	fs.DurationVar(&f.rescanInterval, "rescan-interval", 0, "period of the pending buffer sweep")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: console, json")
	return cmd
}

// load builds the config from the file, then the environment, then flags.
func (f *serveFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := &config.Config{}
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if fs.Changed("node-id") {
		cfg.NodeID = f.nodeID
	}
	if fs.Changed("listen") {
		cfg.ListenAddr = f.listen
	}
	if fs.Changed("http-listen") {
		cfg.HTTPAddr = f.httpListen
	}
	if fs.Changed("peers") {
		peers, err := config.ParsePeers(f.peers)
		if err != nil {
			return nil, errors.Wrap(err, "--peers")
		}
		cfg.Peers = peers
	}
	if fs.Changed("send-timeout") {
		cfg.SendTimeout = f.sendTimeout
	}
	if fs.Changed("rescan-interval") {
		cfg.RescanInterval = f.rescanInterval
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func runServe(cfg *config.Config) error {
	logger, err := logutil.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	n, err := node.New(cfg, logger)
	if err != nil {
		return err
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sc
		logger.Info("got signal to exit", zap.Stringer("signal", sig))
		n.Stop()
	}()

	return n.Start()
}

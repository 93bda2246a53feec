package main

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/logutil"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/node"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

func newDemoCommand() *cobra.Command {
	var (
		nodes string
		pause time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write and read a key across three nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := strings.Split(nodes, ",")
			if len(addrs) != 3 {
				return errors.Errorf("demo needs three node addresses, got %d", len(addrs))
			}
			logger, err := logutil.New("debug", "console")
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runDemo(cmd.Context(), logger.Named("client"), addrs, pause)
		},
	}
	cmd.Flags().StringVar(&nodes, "nodes", "127.0.0.1:7001,127.0.0.1:7002,127.0.0.1:7003", "gRPC addresses of three nodes")
	cmd.Flags().DurationVar(&pause, "wait", 2*time.Second, "pause between steps for replication")
	return cmd
}

func runDemo(ctx context.Context, logger *zap.Logger, addrs []string, pause time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	clients := make([]*node.Client, len(addrs))
	for i, addr := range addrs {
		c, err := node.Dial(strings.TrimSpace(addr))
		if err != nil {
			return err
		}
		defer c.Close()
		clients[i] = c
	}

	write := func(i int, key, value string) error {
		logger.Info("writing", zap.String("key", key), zap.String("value", value), zap.Int("node", i+1))
		resp, err := clients[i].Put(ctx, key, value)
		if err != nil {
			return errors.Wrapf(err, "write at node %d", i+1)
		}
		logger.Debug("response", zap.String("id", resp.MessageID), zap.Stringer("vc", wire.ToClock(resp.Clock)))
		return nil
	}
	read := func(i int, key string) error {
		logger.Info("reading", zap.String("key", key), zap.Int("node", i+1))
		resp, err := clients[i].Get(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "read at node %d", i+1)
		}
		logger.Debug("response",
			zap.Bool("found", resp.Found),
			zap.String("value", resp.Value),
			zap.Stringer("vc", wire.ToClock(resp.Clock)))
		return nil
	}

	steps := []func() error{
		func() error { return write(0, "k1", "v1") },
		func() error { time.Sleep(pause); return nil },
		func() error { return read(1, "k1") },
		func() error { return write(1, "k1", "v2") },
		func() error { time.Sleep(pause); return nil },
		func() error { return read(2, "k1") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

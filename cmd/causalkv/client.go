package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Krishanu-Git/vector-clock-kv-store/internal/node"
	"github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"
)

const defaultAddr = "127.0.0.1:7001"

type clientFlags struct {
	addr    string
	timeout time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", defaultAddr, "gRPC address of the node")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "request timeout")
}

func (f *clientFlags) run(fn func(ctx context.Context, c *node.Client) (interface{}, error)) error {
	c, err := node.Dial(f.addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	out, err := fn(ctx, c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newPutCommand() *cobra.Command {
	f := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Write a key at one node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(func(ctx context.Context, c *node.Client) (interface{}, error) {
				resp, err := c.Put(ctx, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"status": "committed",
					"id":     resp.MessageID,
					"vc":     wire.ToClock(resp.Clock),
				}, nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newGetCommand() *cobra.Command {
	f := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key from one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(func(ctx context.Context, c *node.Client) (interface{}, error) {
				resp, err := c.Get(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return readOutput(resp), nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newStatsCommand() *cobra.Command {
	f := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show clock, buffer and counters of one node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(func(ctx context.Context, c *node.Client) (interface{}, error) {
				s, err := c.Stats(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"node_id":        s.NodeID,
					"vc":             s.Clock,
					"keys":           s.Keys,
					"pending":        s.Pending,
					"oldest_pending": s.OldestPending.String(),
					"applied":        s.Applied,
					"buffered":       s.Buffered,
					"duplicates":     s.Duplicates,
				}, nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func readOutput(resp *wire.ReadResponse) map[string]interface{} {
	out := map[string]interface{}{
		"value": nil,
		"vc":    wire.ToClock(resp.Clock),
	}
	if resp.Found {
		out["value"] = resp.Value
		out["origin"] = resp.Origin
	}
	return out
}

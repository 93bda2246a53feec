// Package config holds the fixed startup configuration of a node: its id,
// listen addresses, the cluster peer list and timing knobs. Values come from
// a TOML file, the NODE_ID and ALL_NODES environment variables, and flags.
package config

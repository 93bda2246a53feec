// Package api is the JSON-over-HTTP gateway of a node. Its routes follow the
// original Flask node (PUT /put/{key}, GET /get/{key}, POST /replicate) plus
// the /write and /read forms used by the demo client, and expose buffer
// status and Prometheus metrics.
package api

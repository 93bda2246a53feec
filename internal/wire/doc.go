// Package wire holds the request and response messages of the causalkv gRPC
// services and their protobuf encoding. The schema lives in
// api/causalkv.proto; messages are encoded by hand with protowire and carried
// by a gRPC codec registered under the "causalkv" content-subtype.
package wire

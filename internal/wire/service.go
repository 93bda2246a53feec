package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Service names as declared in api/causalkv.proto.
const (
	KVStoreServiceName    = "causalkv.v1.KVStore"
	KVInternalServiceName = "causalkv.v1.KVInternal"
)

const (
	kvStoreWriteMethod        = "/causalkv.v1.KVStore/Write"
	kvStoreReadMethod         = "/causalkv.v1.KVStore/Read"
	kvStoreStatsMethod        = "/causalkv.v1.KVStore/Stats"
	kvInternalReplicateMethod = "/causalkv.v1.KVInternal/Replicate"
	protoFile                 = "api/causalkv.proto"
)

// KVStoreServer is the client-facing service.
type KVStoreServer interface {
	Write(context.Context, *WriteRequest) (*WriteResponse, error)
	Read(context.Context, *ReadRequest) (*ReadResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
}

// KVInternalServer is the node-to-node service.
type KVInternalServer interface {
	Replicate(context.Context, *ReplicateRequest) (*ReplicateResponse, error)
}

// RegisterKVStoreServer registers srv with s.
func RegisterKVStoreServer(s grpc.ServiceRegistrar, srv KVStoreServer) {
	s.RegisterService(&kvStoreServiceDesc, srv)
}

// RegisterKVInternalServer registers srv with s.
func RegisterKVInternalServer(s grpc.ServiceRegistrar, srv KVInternalServer) {
	s.RegisterService(&kvInternalServiceDesc, srv)
}

var kvStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: KVStoreServiceName,
	HandlerType: (*KVStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Write", Handler: kvStoreWriteHandler},
		{MethodName: "Read", Handler: kvStoreReadHandler},
		{MethodName: "Stats", Handler: kvStoreStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

var kvInternalServiceDesc = grpc.ServiceDesc{
	ServiceName: KVInternalServiceName,
	HandlerType: (*KVInternalServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Replicate", Handler: kvInternalReplicateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

func kvStoreWriteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WriteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVStoreServer).Write(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: kvStoreWriteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KVStoreServer).Write(ctx, req.(*WriteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func kvStoreReadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVStoreServer).Read(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: kvStoreReadMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KVStoreServer).Read(ctx, req.(*ReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func kvStoreStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVStoreServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: kvStoreStatsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KVStoreServer).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func kvInternalReplicateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReplicateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVInternalServer).Replicate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: kvInternalReplicateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KVInternalServer).Replicate(ctx, req.(*ReplicateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// KVStoreClient is the client API of the KVStore service.
type KVStoreClient interface {
	Write(ctx context.Context, in *WriteRequest, opts ...grpc.CallOption) (*WriteResponse, error)
	Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadResponse, error)
	Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
}

// KVInternalClient is the client API of the KVInternal service.
type KVInternalClient interface {
	Replicate(ctx context.Context, in *ReplicateRequest, opts ...grpc.CallOption) (*ReplicateResponse, error)
}

type kvStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewKVStoreClient returns a KVStore client on cc.
func NewKVStoreClient(cc grpc.ClientConnInterface) KVStoreClient {
	return &kvStoreClient{cc: cc}
}

func (c *kvStoreClient) Write(ctx context.Context, in *WriteRequest, opts ...grpc.CallOption) (*WriteResponse, error) {
	out := new(WriteResponse)
	if err := c.cc.Invoke(ctx, kvStoreWriteMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvStoreClient) Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadResponse, error) {
	out := new(ReadResponse)
	if err := c.cc.Invoke(ctx, kvStoreReadMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvStoreClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.cc.Invoke(ctx, kvStoreStatsMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type kvInternalClient struct {
	cc grpc.ClientConnInterface
}

// NewKVInternalClient returns a KVInternal client on cc.
func NewKVInternalClient(cc grpc.ClientConnInterface) KVInternalClient {
	return &kvInternalClient{cc: cc}
}

func (c *kvInternalClient) Replicate(ctx context.Context, in *ReplicateRequest, opts ...grpc.CallOption) (*ReplicateResponse, error) {
	out := new(ReplicateResponse)
	if err := c.cc.Invoke(ctx, kvInternalReplicateMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{CallOption()}, opts...)
}

package wire

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const protoPackage = "causalkv.v1"

// File describes api/causalkv.proto. It is registered with
// protoregistry.GlobalFiles, where server reflection looks services up.
var File protoreflect.FileDescriptor

func init() {
	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic("wire: invalid descriptor for " + protoFile + ": " + err.Error())
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic("wire: register " + protoFile + ": " + err.Error())
	}
	File = fd
}

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	typeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeUint64  = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	typeBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	typeEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
)

// fileDescriptorProto mirrors api/causalkv.proto. Field numbers must agree
// with the AppendWire methods in messages.go.
func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/Krishanu-Git/vector-clock-kv-store/internal/wire"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("ClockEntry",
				field("node_id", 1, typeString, ""),
				field("counter", 2, typeInt64, "")),
			message("VectorClock",
				repeated(field("entries", 1, typeMessage, "ClockEntry"))),
			message("WriteRequest",
				field("key", 1, typeString, ""),
				field("value", 2, typeString, ""),
				field("client_id", 3, typeString, ""),
				field("request_id", 4, typeString, "")),
			message("WriteResponse",
				field("message_id", 1, typeString, ""),
				field("clock", 2, typeMessage, "VectorClock")),
			message("ReadRequest",
				field("key", 1, typeString, ""),
				field("client_id", 2, typeString, ""),
				field("request_id", 3, typeString, "")),
			message("ReadResponse",
				field("found", 1, typeBool, ""),
				field("value", 2, typeString, ""),
				field("origin", 3, typeString, ""),
				field("clock", 4, typeMessage, "VectorClock")),
			message("StatsRequest"),
			message("StatsResponse",
				field("node_id", 1, typeString, ""),
				field("clock", 2, typeMessage, "VectorClock"),
				field("keys", 3, typeInt64, ""),
				field("pending", 4, typeInt64, ""),
				field("oldest_pending_ms", 5, typeInt64, ""),
				field("applied", 6, typeUint64, ""),
				field("buffered", 7, typeUint64, ""),
				field("duplicates", 8, typeUint64, "")),
			message("ReplicateRequest",
				field("message_id", 1, typeString, ""),
				field("sender", 2, typeString, ""),
				field("key", 3, typeString, ""),
				field("value", 4, typeString, ""),
				field("clock", 5, typeMessage, "VectorClock")),
			message("ReplicateResponse",
				field("status", 1, typeEnum, "ReplicateStatus")),
		},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("ReplicateStatus"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("REPLICATE_ACCEPTED"), Number: proto.Int32(int32(ReplicateAccepted))},
			},
		}},
		Service: []*descriptorpb.ServiceDescriptorProto{
			service("KVStore",
				method("Write", "WriteRequest", "WriteResponse"),
				method("Read", "ReadRequest", "ReadResponse"),
				method("Stats", "StatsRequest", "StatsResponse")),
			service("KVInternal",
				method("Replicate", "ReplicateRequest", "ReplicateResponse")),
		},
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func field(name string, num int32, typ fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(qualified(typeName))
	}
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func service(name string, methods ...*descriptorpb.MethodDescriptorProto) *descriptorpb.ServiceDescriptorProto {
	return &descriptorpb.ServiceDescriptorProto{Name: proto.String(name), Method: methods}
}

func method(name, in, out string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(qualified(in)),
		OutputType: proto.String(qualified(out)),
	}
}

func qualified(name string) string {
	return "." + protoPackage + "." + name
}

// Package v1 holds the wire schema of the streaming ingestion feed.
//
// The messages are described at runtime from a descriptorpb.FileDescriptorProto
// mirroring feed.proto and instantiated as dynamicpb messages, so the default
// gRPC proto codec can marshal them without generated stubs.
package v1

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/anypb"
)

const (
	// PackageName is the proto package of the ingestion feed.
	PackageName = "esri.realtime.core.grpc"

	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = PackageName + ".GrpcFeed"

	// StreamMethod is the client-streaming method.
	StreamMethod = "/" + ServiceName + "/Stream"

	// SendMethod is the unary method.
	SendMethod = "/" + ServiceName + "/Send"

	// RoutingHeader identifies the target feed path on every call.
	RoutingHeader = "grpc-path"
)

var (
	// File is the descriptor of feed.proto.
	File protoreflect.FileDescriptor

	requestDesc  protoreflect.MessageDescriptor
	responseDesc protoreflect.MessageDescriptor
	featureDesc  protoreflect.MessageDescriptor

	requestFeatures   protoreflect.FieldDescriptor
	featureAttributes protoreflect.FieldDescriptor
	responseMessage   protoreflect.FieldDescriptor
	responseCode      protoreflect.FieldDescriptor
)

func init() {
	// any.proto must be present in the global registry before resolving.
	_ = anypb.File_google_protobuf_any_proto

	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("failed to build feed descriptor: %v", err))
	}
	File = fd

	msgs := fd.Messages()
	requestDesc = msgs.ByName("Request")
	responseDesc = msgs.ByName("Response")
	featureDesc = msgs.ByName("Feature")

	requestFeatures = requestDesc.Fields().ByName("features")
	featureAttributes = featureDesc.Fields().ByName("attributes")
	responseMessage = responseDesc.Fields().ByName("message")
	responseCode = responseDesc.Fields().ByName("code")
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	ref := func(name string) *string { return proto.String("." + PackageName + "." + name) }

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("esri/realtime/core/grpc/feed.proto"),
		Package:    proto.String(PackageName),
		Dependency: []string{"google/protobuf/any.proto"},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Request"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeatedMessage("features", 1, *ref("Feature")),
				},
			},
			{
				Name: proto.String("Response"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("message", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("code", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
			{
				Name: proto.String("Feature"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeatedMessage("attributes", 1, ".google.protobuf.Any"),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: proto.String("GrpcFeed"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:            proto.String("Stream"),
						InputType:       ref("Request"),
						OutputType:      ref("Response"),
						ClientStreaming: proto.Bool(true),
					},
					{
						Name:       proto.String("Send"),
						InputType:  ref("Request"),
						OutputType: ref("Response"),
					},
				},
			},
		},
	}
}

func repeatedMessage(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(typeName),
	}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

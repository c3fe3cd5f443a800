package v1

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/anypb"
)

// Feature is one positional attribute list.
type Feature []*anypb.Any

// Batch is the ordered set of features produced by one poll cycle.
type Batch []Feature

// Request packs the batch into a GrpcFeed Request, preserving order.
func (b Batch) Request() *dynamicpb.Message {
	req := NewRequest()
	for _, f := range b {
		AppendFeature(req, f)
	}
	return req
}

// NewRequest returns an empty Request message.
func NewRequest() *dynamicpb.Message {
	return dynamicpb.NewMessage(requestDesc)
}

// NewResponse returns an empty Response message.
func NewResponse() *dynamicpb.Message {
	return dynamicpb.NewMessage(responseDesc)
}

// NewFeatureMessage converts attributes into a Feature message.
func NewFeatureMessage(f Feature) *dynamicpb.Message {
	msg := dynamicpb.NewMessage(featureDesc)
	list := msg.Mutable(featureAttributes).List()
	for _, attr := range f {
		list.Append(protoreflect.ValueOfMessage(attr.ProtoReflect()))
	}
	return msg
}

// AppendFeature appends f to the features of req.
func AppendFeature(req *dynamicpb.Message, f Feature) {
	req.Mutable(requestFeatures).List().Append(protoreflect.ValueOfMessage(NewFeatureMessage(f)))
}

// Features unpacks the features of a Request, whether it was built locally or
// decoded off the wire.
func Features(req proto.Message) ([]Feature, error) {
	m := req.ProtoReflect()
	if m.Descriptor().FullName() != requestDesc.FullName() {
		return nil, fmt.Errorf("unexpected message %s", m.Descriptor().FullName())
	}

	list := m.Get(requestFeatures).List()
	features := make([]Feature, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		attrs := list.Get(i).Message().Get(featureAttributes).List()
		f := make(Feature, 0, attrs.Len())
		for j := 0; j < attrs.Len(); j++ {
			a, err := toAny(attrs.Get(j).Message())
			if err != nil {
				return nil, fmt.Errorf("feature %d attribute %d: %w", i, j, err)
			}
			f = append(f, a)
		}
		features = append(features, f)
	}
	return features, nil
}

func toAny(m protoreflect.Message) (*anypb.Any, error) {
	if a, ok := m.Interface().(*anypb.Any); ok {
		return a, nil
	}

	// Decoded sub-messages are dynamic, re-decode into the concrete type.
	raw, err := proto.Marshal(m.Interface())
	if err != nil {
		return nil, err
	}
	a := &anypb.Any{}
	if err := proto.Unmarshal(raw, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SetResponse fills a Response message.
func SetResponse(resp *dynamicpb.Message, message string, code int32) {
	resp.Set(responseMessage, protoreflect.ValueOfString(message))
	resp.Set(responseCode, protoreflect.ValueOfInt32(code))
}

// ResponseMessage reads the message field of a Response.
func ResponseMessage(resp proto.Message) string {
	return resp.ProtoReflect().Get(responseMessage).String()
}

// ResponseCode reads the code field of a Response.
func ResponseCode(resp proto.Message) int32 {
	return int32(resp.ProtoReflect().Get(responseCode).Int())
}

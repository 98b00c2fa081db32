package llmprovider

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets this package talk to the model-serving process over
// plain gRPC framing without a protoc-compiled message set: rather than
// generated .pb.go types, wire messages are the plain completionRequest/
// completionResponse structs below, marshaled as JSON. This keeps the
// same gRPC transport (HTTP/2, streaming, deadlines, status codes) the
// teacher's llm.Client uses, without requiring protoc/protoc-gen-go to
// run.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

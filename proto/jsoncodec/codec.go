// Package jsoncodec registers a grpc "json" content-subtype codec so
// the Instrument service's hand-rolled message structs (proto package)
// can travel over a real google.golang.org/grpc transport without a
// protoc-generated proto.Message implementation. See DESIGN.md for the
// rationale; this mirrors the handful of real-world grpc-go services
// that register encoding.Codec for a non-protobuf payload (grpc's own
// "encoding" package is built for exactly this pluggability) rather
// than running protoc at build time.
package jsoncodec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the grpc content-subtype every Instrument call must set via
// grpc.CallContentSubtype(Name), and the name the server registers this
// codec under.
const Name = "json"

// Codec implements google.golang.org/grpc/encoding.Codec.
type Codec struct{}

// Marshal encodes v as JSON.
func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes JSON into v.
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name reports the codec's registered name.
func (Codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(Codec{})
}

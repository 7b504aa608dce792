// Package codec holds the pluggable body encoders and decoders used by the
// HTTP client. Each implementation owns its own field naming convention and
// date layout; the client only sees the Serializer and Deserializer
// capabilities.
package codec

import "errors"

// ErrUnsupportedType is returned when a value cannot be represented by a codec.
var ErrUnsupportedType = errors.New("codec: unsupported type")

// Serializer turns a typed value into request body bytes.
type Serializer interface {
	// ContentType is sent as the Content-Type header of the encoded body.
	ContentType() string
	Serialize(v any) ([]byte, error)
}

// Deserializer decodes response body bytes into out, which must be a pointer.
type Deserializer interface {
	Deserialize(data []byte, out any) error
}

// Codec is a Serializer and a Deserializer sharing one configuration.
type Codec interface {
	Serializer
	Deserializer
}

// Empty is the decode target for calls whose response body carries nothing
// of interest. Deserializers accept any payload, including none, into it.
type Empty struct{}

var (
	_ Codec      = JSON{}
	_ Serializer = Form{}
	_ Codec      = Raw{}
)

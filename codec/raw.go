package codec

import (
	"encoding/json"
	"fmt"
)

const contentTypeOctetStream = "application/octet-stream"

// Raw passes bytes through untouched. It serializes []byte, string and
// json.RawMessage, and deserializes into *[]byte, *string or *Empty.
type Raw struct {
	// Type is the Content-Type to advertise; application/octet-stream when empty.
	Type string
}

// ContentType implements Serializer.
func (r Raw) ContentType() string {
	if r.Type == "" {
		return contentTypeOctetStream
	}
	return r.Type
}

// Serialize implements Serializer.
func (Raw) Serialize(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case json.RawMessage:
		return val, nil
	case string:
		return []byte(val), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("raw serialize: %w: %T", ErrUnsupportedType, v)
}

// Deserialize implements Deserializer.
func (Raw) Deserialize(data []byte, out any) error {
	switch target := out.(type) {
	case *[]byte:
		*target = append((*target)[:0], data...)
	case *string:
		*target = string(data)
	case *Empty:
	default:
		return fmt.Errorf("raw deserialize: %w: %T", ErrUnsupportedType, out)
	}
	return nil
}

package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const contentTypeJSON = "application/json"

var (
	bytesType           = reflect.TypeOf([]byte(nil))
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// JSON encodes and decodes application/json bodies. The zero value keeps
// field names as tagged and formats dates as RFC 3339 with nanoseconds.
type JSON struct {
	// Keys selects the naming convention applied to struct field names.
	Keys KeyStrategy
	// DateLayout is the time.Format layout for time.Time values.
	DateLayout string
}

// ContentType implements Serializer.
func (JSON) ContentType() string { return contentTypeJSON }

// Serialize encodes v. Nil pointers, maps, slices and interfaces inside v
// are omitted from their parent object rather than written as null.
func (j JSON) Serialize(v any) ([]byte, error) {
	tree, present, err := treeEncoder{keys: j.Keys, dateLayout: j.DateLayout}.encode(v)
	if err != nil {
		return nil, fmt.Errorf("json serialize: %w", err)
	}
	if !present {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("json serialize: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Deserialize decodes data into out. Payload keys are matched against field
// names case-insensitively, both as written and after applying Keys.
func (j JSON) Deserialize(data []byte, out any) error {
	switch target := out.(type) {
	case *Empty:
		return nil
	case *[]byte:
		*target = append((*target)[:0], data...)
		return nil
	case json.Unmarshaler:
		return target.UnmarshalJSON(data)
	}

	generic, err := decodeGeneric(data)
	if err != nil {
		return fmt.Errorf("json deserialize: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:    out,
		TagName:   "json",
		Squash:    true,
		MatchName: j.matchName,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(treeEncoder{dateLayout: j.DateLayout}.layout()),
			base64BytesHook,
			jsonUnmarshalerHook,
		),
	})
	if err != nil {
		return fmt.Errorf("json deserialize: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return fmt.Errorf("json deserialize: %w", err)
	}
	return nil
}

// decodeGeneric parses data into maps, slices and scalars. Numbers are kept
// exact: integers become int64 or uint64 and only non-integral values
// become float64.
func decodeGeneric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return exactNumbers(generic)
}

func exactNumbers(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", t, err)
		}
		return f, nil
	case map[string]any:
		for k, item := range t {
			n, err := exactNumbers(item)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
	case []any:
		for i, item := range t {
			n, err := exactNumbers(item)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
	}
	return v, nil
}

func (j JSON) matchName(mapKey, fieldName string) bool {
	return strings.EqualFold(mapKey, fieldName) || strings.EqualFold(mapKey, j.Keys.Apply(fieldName))
}

func base64BytesHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != bytesType {
		return data, nil
	}
	return base64.StdEncoding.DecodeString(data.(string))
}

// jsonUnmarshalerHook hands the generic value back to a target type that
// knows how to decode its own JSON form.
func jsonUnmarshalerHook(from, to reflect.Type, data any) (any, error) {
	if from == to || to == timeType || to.Kind() == reflect.Interface {
		return data, nil
	}
	if !reflect.PointerTo(to).Implements(jsonUnmarshalerType) {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	target := reflect.New(to)
	if err := target.Interface().(json.Unmarshaler).UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

package codec

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var (
	timeType          = reflect.TypeOf(time.Time{})
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// treeEncoder lowers a Go value into a generic tree of map[string]any, []any
// and scalars. Nil pointers, maps, slices and interfaces are reported as
// absent so that the owning key is dropped instead of being written as null.
type treeEncoder struct {
	keys       KeyStrategy
	dateLayout string
}

func (e treeEncoder) encode(v any) (any, bool, error) {
	return e.value(reflect.ValueOf(v))
}

func (e treeEncoder) value(rv reflect.Value) (any, bool, error) {
	if !rv.IsValid() {
		return nil, false, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, false, nil
		}
	}

	if rv.Type() == timeType {
		return rv.Interface().(time.Time).Format(e.layout()), true, nil
	}
	if rv.Type().Implements(jsonMarshalerType) {
		return e.marshaled(rv.Interface().(json.Marshaler))
	}
	if rv.Kind() != reflect.Pointer && rv.Type().Implements(textMarshalerType) {
		text, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, false, err
		}
		return string(text), true, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return e.value(rv.Elem())
	case reflect.Struct:
		m, err := e.structFields(rv)
		return m, true, err
	case reflect.Map:
		return e.mapEntries(rv)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(rv.Bytes()), true, nil
		}
		return e.list(rv)
	case reflect.Array:
		return e.list(rv)
	case reflect.String:
		return rv.String(), true, nil
	case reflect.Bool:
		return rv.Bool(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true, nil
	}
	return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

func (e treeEncoder) layout() string {
	if e.dateLayout == "" {
		return time.RFC3339Nano
	}
	return e.dateLayout
}

func (e treeEncoder) marshaled(m json.Marshaler) (any, bool, error) {
	raw, err := m.MarshalJSON()
	if err != nil {
		return nil, false, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (e treeEncoder) structFields(rv reflect.Value) (map[string]any, error) {
	out := make(map[string]any, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		omitEmpty := strings.Contains(","+opts+",", ",omitempty,")

		fv := rv.Field(i)
		if field.Anonymous && name == "" {
			embedded, ok := embeddedStruct(fv)
			if !ok {
				continue
			}
			nested, err := e.structFields(embedded)
			if err != nil {
				return nil, err
			}
			for k, v := range nested {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
			continue
		}
		if !field.IsExported() || !fv.CanInterface() {
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		val, present, err := e.value(fv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if present {
			out[e.keys.Apply(name)] = val
		}
	}
	return out, nil
}

func embeddedStruct(fv reflect.Value) (reflect.Value, bool) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() || !fv.CanInterface() {
			return reflect.Value{}, false
		}
		fv = fv.Elem()
	}
	if fv.Kind() != reflect.Struct || fv.Type() == timeType {
		return reflect.Value{}, false
	}
	return fv, true
}

func (e treeEncoder) mapEntries(rv reflect.Value) (any, bool, error) {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return nil, false, err
		}
		val, present, err := e.value(iter.Value())
		if err != nil {
			return nil, false, fmt.Errorf("key %s: %w", key, err)
		}
		if present {
			out[key] = val
		}
	}
	return out, true, nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		text, err := tm.MarshalText()
		return string(text), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprint(k.Interface()), nil
	}
	return "", fmt.Errorf("%w: map key %s", ErrUnsupportedType, k.Type())
}

func (e treeEncoder) list(rv reflect.Value) (any, bool, error) {
	out := make([]any, rv.Len())
	for i := range out {
		val, _, err := e.value(rv.Index(i))
		if err != nil {
			return nil, false, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = val
	}
	return out, true, nil
}

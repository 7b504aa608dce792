package codec

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

const contentTypeForm = "application/x-www-form-urlencoded"

// Form encodes values as application/x-www-form-urlencoded. Nested objects
// use bracketed keys (parent[child]) and lists repeat their key. A nil field
// is left out of the form entirely while an empty string is sent as "key=".
type Form struct {
	Keys       KeyStrategy
	DateLayout string
}

// ContentType implements Serializer.
func (Form) ContentType() string { return contentTypeForm }

// Serialize encodes v, which must be a struct, a map or url.Values.
func (f Form) Serialize(v any) ([]byte, error) {
	if values, ok := v.(url.Values); ok {
		return []byte(values.Encode()), nil
	}

	tree, present, err := treeEncoder{keys: f.Keys, dateLayout: f.DateLayout}.encode(v)
	if err != nil {
		return nil, fmt.Errorf("form serialize: %w", err)
	}
	if !present {
		return []byte{}, nil
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("form serialize: %w: %T is not an object", ErrUnsupportedType, v)
	}

	values := url.Values{}
	flattenForm(values, "", root)
	return []byte(values.Encode()), nil
}

func flattenForm(values url.Values, prefix string, node map[string]any) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "[" + k + "]"
		}
		addFormValue(values, name, node[k])
	}
}

func addFormValue(values url.Values, name string, v any) {
	switch val := v.(type) {
	case nil:
	case map[string]any:
		flattenForm(values, name, val)
	case []any:
		for i, item := range val {
			if nested, ok := item.(map[string]any); ok {
				flattenForm(values, name+"["+strconv.Itoa(i)+"]", nested)
				continue
			}
			addFormValue(values, name, item)
		}
	default:
		values.Add(name, formScalar(val))
	}
}

func formScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

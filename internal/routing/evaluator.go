package routing

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Evaluator computes the route keys for a message. An empty result means no route.
type Evaluator interface {
	Evaluate(msg *Message) ([]string, error)
	// Kind is "expression" or "script"
	Kind() string
}

// toRouteKeys coerces an evaluation result. Scalars become one key, slices and
// arrays fan out, nil and blank strings produce nothing. Maps, structs and
// nested collections are rejected.
func toRouteKeys(value interface{}) ([]string, error) {
	if value == nil {
		return nil, nil
	}

	if b, ok := value.([]byte); ok {
		return appendKey(nil, string(b)), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		keys := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			if elem == nil {
				continue
			}
			key, err := scalarKey(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			keys = appendKey(keys, key)
		}
		return keys, nil
	}

	key, err := scalarKey(value)
	if err != nil {
		return nil, err
	}
	return appendKey(nil, key), nil
}

func scalarKey(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return toString(value), nil
	}

	return "", fmt.Errorf("cannot use %T as a route key", value)
}

func appendKey(keys []string, key string) []string {
	key = strings.TrimSpace(key)
	if key == "" {
		return keys
	}
	return append(keys, key)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

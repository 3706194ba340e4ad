package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/aqlc/internal/ir"
)

// marshalObject encodes a map as canonical JSON. A nil map is stored as {}.
func marshalObject[V any](m map[string]V) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalValues decodes a stored JSON object. Integral numbers come back
// as int so that recompiled pipelines see the same Go types the original
// compile did.
func unmarshalValues(data string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	for k, v := range m {
		m[k] = normalizeNumbers(v)
	}
	return m, nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeNumbers(t[k])
		}
		return t
	default:
		return v
	}
}

func unmarshalStrings(data string) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decode strings: %w", err)
	}
	return m, nil
}

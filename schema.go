package toolbridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errSchemaNotObject = errors.New("schema is not a JSON object")

// schemaError reports a descriptor whose parameter schema cannot be bound.
// It never leaves the catalog builder.
type schemaError struct {
	tool string
	err  error
}

func (e *schemaError) Error() string {
	return fmt.Sprintf("tool %q: bad input schema: %v", e.tool, e.err)
}

func (e *schemaError) Unwrap() error { return e.err }

// decodeSchema turns a raw input schema into a map. An empty or null schema
// becomes {"type":"object"}. Anything that is not a JSON object is an error.
func decodeSchema(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{"type": "object"}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errSchemaNotObject
	}
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	stripSchemaIDs(m)
	return m, nil
}

// walkSchema recursively visits every map node in the schema tree (including $defs and definitions).
func walkSchema(schemaMap map[string]any, visit func(map[string]any)) {
	if schemaMap == nil {
		return
	}
	visit(schemaMap)
	for _, val := range schemaMap {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				if m2, ok := item.(map[string]any); ok {
					walkSchema(m2, visit)
				}
			}
		}
	}
}

// stripSchemaIDs removes id and $id so binding and compilation do not try to
// resolve them.
func stripSchemaIDs(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		delete(n, "id")
		delete(n, "$id")
	})
}

// cloneSchema deep-copies a decoded JSON value.
func cloneSchema(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := cloneValue(m).(map[string]any)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

package local

import (
	"encoding/json"
	"errors"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

var errNilSchema = errors.New("schema reflection returned nil")

// reflectSchema builds the schema of T, with description and enum struct tags
// applied to its top-level properties.
func reflectSchema[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errNilSchema
	}
	annotate(s, reflect.TypeFor[T]())
	return s, nil
}

// parseSchema decodes a raw schema map into a fresh tree. m is not retained.
func parseSchema(m map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// finalize drops ids, applies strict mode and resolves s. It returns the map
// form advertised to clients next to the validator.
func finalize(s *jsonschema.Schema, strict bool) (map[string]any, *jsonschema.Resolved, error) {
	eachSchema(s, func(n *jsonschema.Schema) {
		n.ID = ""
		delete(n.Extra, "id")
		if strict && n.Properties != nil {
			n.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
			n.Required = slices.Sorted(maps.Keys(n.Properties))
		}
	})
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, nil, err
	}
	return params, resolved, nil
}

// annotate copies description and enum tags of a struct type onto s.Properties.
func annotate(s *jsonschema.Schema, typ reflect.Type) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct || len(s.Properties) == 0 {
		return
	}
	for i := range typ.NumField() {
		field := typ.Field(i)
		key, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		prop := s.Properties[key]
		if key == "" || key == "-" || prop == nil {
			continue
		}
		if desc := field.Tag.Get("description"); desc != "" {
			prop.Description = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			prop.Enum = nil
			for v := range strings.SplitSeq(enum, ",") {
				prop.Enum = append(prop.Enum, strings.TrimSpace(v))
			}
		}
	}
}

// eachSchema visits s and every subschema below it, parents first.
func eachSchema(s *jsonschema.Schema, visit func(*jsonschema.Schema)) {
	if s == nil {
		return
	}
	visit(s)
	for _, group := range []map[string]*jsonschema.Schema{s.Properties, s.PatternProperties, s.Defs, s.Definitions, s.DependentSchemas} {
		for _, child := range group {
			eachSchema(child, visit)
		}
	}
	for _, list := range [][]*jsonschema.Schema{s.PrefixItems, s.AllOf, s.AnyOf, s.OneOf} {
		for _, child := range list {
			eachSchema(child, visit)
		}
	}
	for _, child := range []*jsonschema.Schema{s.Items, s.AdditionalProperties, s.Not, s.If, s.Then, s.Else, s.Contains, s.PropertyNames} {
		eachSchema(child, visit)
	}
}

// cloneSchema deep-copies a schema map through JSON.
func cloneSchema(m map[string]any) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

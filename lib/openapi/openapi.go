// Package openapi resolves component schemas out of a machine-readable
// API description (OpenAPI 3.x). Streams name the component their
// records conform to and get back a standalone JSON Schema tree with all
// internal $ref pointers inlined.
package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tap-pingdom/lib/schemapatch"
)

const refPrefix = "#/components/schemas/"

var (
	ErrUnknownComponent = errors.New("unknown component schema")
	ErrCircularRef      = errors.New("circular $ref")
)

type Document struct {
	schemas map[string]any
}

// Load parses an OpenAPI document and indexes its components.schemas
// section.
func Load(data []byte) (*Document, error) {
	var doc struct {
		Components struct {
			Schemas map[string]any `json:"schemas"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if doc.Components.Schemas == nil {
		return nil, fmt.Errorf("openapi document has no components.schemas")
	}
	return &Document{schemas: doc.Components.Schemas}, nil
}

// Schema returns the component schema registered under key as a fresh
// tree: $refs to sibling components are inlined and the result shares no
// structure with the document, so callers may patch it freely.
func (d *Document) Schema(key string) (map[string]any, error) {
	raw, ok := d.schemas[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, key)
	}
	resolved, err := d.resolve(raw, map[string]bool{key: true})
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", key, err)
	}
	schema, err := schemapatch.AsSchema(resolved)
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", key, err)
	}
	return schema, nil
}

func (d *Document) resolve(v any, expanding map[string]bool) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && len(v) == 1 {
			return d.inline(ref, expanding)
		}
		out := make(map[string]any, len(v))
		for k, e := range v {
			resolved, err := d.resolve(e, expanding)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			resolved, err := d.resolve(e, expanding)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (d *Document) inline(ref string, expanding map[string]bool) (any, error) {
	name, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		// external or non-component refs are left untouched
		return map[string]any{"$ref": ref}, nil
	}
	target, ok := d.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: $ref %q", ErrUnknownComponent, ref)
	}
	if expanding[name] {
		return nil, fmt.Errorf("%w: %q", ErrCircularRef, ref)
	}
	expanding[name] = true
	defer delete(expanding, name)
	return d.resolve(target, expanding)
}

// Package schemapatch deep-merges sparse patches into JSON-Schema-like
// trees. It exists to paper over the gap between the schemas Pingdom
// publishes in its OpenAPI document and the shapes its API actually
// returns: a stream declares a small patch and gets a corrected copy of
// the published schema back.
package schemapatch

import (
	"errors"
	"fmt"
)

var ErrInvalidSchema = errors.New("value is not a schema object")

type deleteMarker struct{}

// Delete is the sentinel patch value that removes a key from the merge
// result. It is deliberately distinct from nil: JSON null is a legitimate
// replacement value in a schema tree (e.g. "type": ["object", null-able]),
// so nil cannot double as a deletion signal.
var Delete any = deleteMarker{}

// AsSchema asserts that an untyped value (typically something pulled out
// of a parsed OpenAPI document) is a schema object.
func AsSchema(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidSchema, v)
	}
	return m, nil
}

// Apply deep-merges patches into base and returns a new tree. base is
// never mutated and the result shares no structure with it.
//
// For each key in patches:
//   - Delete removes the key from the result if it exists; deleting an
//     absent key is a no-op.
//   - if both the current value and the patch value are objects, they
//     are merged recursively.
//   - otherwise the patch value replaces the current value wholesale,
//     including keys not present in base at all.
//
// Keys absent from patches are left untouched, so an empty patch returns
// a structural copy of base.
func Apply(base, patches map[string]any) map[string]any {
	result := copyTree(base)
	merge(result, patches)
	return result
}

func merge(target, source map[string]any) {
	for key, value := range source {
		if _, isDelete := value.(deleteMarker); isDelete {
			delete(target, key)
			continue
		}
		existing, exists := target[key]
		existingMap, existingIsMap := existing.(map[string]any)
		valueMap, valueIsMap := value.(map[string]any)
		if exists && existingIsMap && valueIsMap {
			merge(existingMap, valueMap)
			continue
		}
		target[key] = copyValue(value)
	}
}

func copyTree(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return copyTree(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

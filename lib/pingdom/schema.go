package pingdom

// helpers for the streams whose schema is written out by hand because
// the published OpenAPI document only defines their item shape inline in
// a response wrapper.

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		list := make([]any, len(required))
		for i, r := range required {
			list[i] = r
		}
		schema["required"] = list
	}
	return schema
}

func property(typ, description string) map[string]any {
	p := map[string]any{"type": typ}
	if description != "" {
		p["description"] = description
	}
	return p
}

func arrayOf(items map[string]any, description string) map[string]any {
	a := map[string]any{
		"type":  "array",
		"items": items,
	}
	if description != "" {
		a["description"] = description
	}
	return a
}

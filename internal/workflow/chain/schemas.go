package chain

// OutlineSchema 大纲阶段的 json_schema 提示
func OutlineSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "outlines"},
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"outlines": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string"},
			},
		},
	}
}

// DetailSchema 详情阶段的 json_schema 提示；长度等细则由校验器负责
func DetailSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "description", "slides"},
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"slides": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"id", "title", "points", "image_required", "image_gen_prompt", "image_url"},
					"properties": map[string]any{
						"id":    map[string]any{"type": "string"},
						"title": map[string]any{"type": "string"},
						"points": map[string]any{
							"type":     "array",
							"minItems": 3,
							"maxItems": 5,
							"items":    map[string]any{"type": "string"},
						},
						"image_required":   map[string]any{"type": "boolean"},
						"image_gen_prompt": map[string]any{"type": "string"},
						"image_url":        map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

package chain

// 说明：schema 以“最小可用”为目标，避免过度约束导致模型输出失败。

func overviewJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "overview", "characters"},
		"properties": map[string]any{
			"title":    map[string]any{"type": "string"},
			"overview": map[string]any{"type": "string"},
			"characters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "description"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func plotListJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"items"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"title", "overview"},
					"properties": map[string]any{
						"title":    map[string]any{"type": "string"},
						"overview": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func characterStateJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"clothing", "psychological", "physiological"},
		"properties": map[string]any{
			"clothing":      map[string]any{"type": "string"},
			"psychological": map[string]any{"type": "string"},
			"physiological": map[string]any{"type": "string"},
		},
	}
}

func sectionContentJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"content", "current_state"},
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
			"current_state": map[string]any{
				"type":                 "object",
				"additionalProperties": characterStateJSONSchema(),
			},
		},
	}
}

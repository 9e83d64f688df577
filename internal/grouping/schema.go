package grouping

import "github.com/noah-isme/sma-grouping-api/pkg/llm"

// GroupingSchema constrains the model output to the grouping structure.
var GroupingSchema = &llm.Schema{
	Name:        "student-grouping",
	Description: "A partition of a class roster into balanced collaborative groups",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"groups": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"groupId":    map[string]any{"type": "string"},
						"groupName":  map[string]any{"type": "string"},
						"studentIds": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"rationale":  map[string]any{"type": "string"},
					},
					"required": []any{"groupId", "groupName", "studentIds", "rationale"},
				},
			},
			"overallRationale":       map[string]any{"type": "string"},
			"genderBalanceRationale": map[string]any{"type": "string"},
			"performanceRationale":   map[string]any{"type": "string"},
		},
		"required": []any{"groups", "overallRationale", "genderBalanceRationale", "performanceRationale"},
	},
}

// acceptedResponseSchema is the minimum a response must satisfy to be used.
// Rationale fields are optional here so a terse but usable answer still parses.
var acceptedResponseSchema = &llm.Schema{
	Name: "student-grouping-accepted",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"groups": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"studentIds": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []any{"studentIds"},
				},
			},
		},
		"required": []any{"groups"},
	},
}

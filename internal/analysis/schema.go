package analysis

import "github.com/abhisek/wordiz/internal/llm"

// ReportSchema defines the JSON schema for LLM practice analysis responses.
var ReportSchema = &llm.Schema{
	Name:        "practice-report",
	Description: "A short written analysis of one vocabulary practice run",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"report": map[string]any{
				"type":        "string",
				"description": "2-4 sentence summary of the run: what went well, which words or question types caused trouble, written directly to the learner",
			},
			"recommendations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
				},
				"description": "Up to 3 concrete next steps, each one sentence. Empty when the run was perfect.",
			},
		},
		"required":             []any{"report", "recommendations"},
		"additionalProperties": false,
	},
}

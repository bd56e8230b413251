package generation

import "github.com/abhisek/wordiz/internal/llm"

// ChoiceSectionSchema defines the JSON schema for a generated
// multiple-choice section (either translation direction).
var ChoiceSectionSchema = &llm.Schema{
	Name:        "choice-section",
	Description: "A batch of multiple-choice vocabulary questions, one per word",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"word": map[string]any{
							"type":        "string",
							"description": "The English headword this question tests",
						},
						"prompt": map[string]any{
							"type":        "string",
							"description": "The question prompt shown to the learner",
						},
						"choices": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "string",
							},
							"description": "Exactly 4 answer options",
						},
						"correct_index": map[string]any{
							"type":        "integer",
							"minimum":     0,
							"maximum":     3,
							"description": "Zero-based index of the correct option",
						},
					},
					"required":             []any{"word", "prompt", "choices", "correct_index"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// ClozeSectionSchema defines the JSON schema for a generated
// fill-in-the-blank section.
var ClozeSectionSchema = &llm.Schema{
	Name:        "cloze-section",
	Description: "A batch of fill-in-the-blank sentences, one per word",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"word": map[string]any{
							"type":        "string",
							"description": "The English headword this question tests",
						},
						"sentence": map[string]any{
							"type":        "string",
							"description": "A natural English sentence using the word or phrase, unmasked",
						},
						"translation": map[string]any{
							"type":        "string",
							"description": "Chinese translation of the full sentence",
						},
						"correct_answer": map[string]any{
							"type":        "string",
							"description": "The exact word or phrase, in dictionary form, the learner must supply",
						},
					},
					"required":             []any{"word", "sentence", "translation", "correct_answer"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

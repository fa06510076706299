package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/villagegraph/assistant/internal/graphstore"
)

// ChatClient is the slice of the chat completions API the regeneration
// layers use. *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// extractionSchema is the structured output contract for the schema-aware
// regeneration pass.
var extractionSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"query": {
			Type:        jsonschema.String,
			Description: "The Cypher query, or an empty string if none can be produced",
		},
		"is_valid": {
			Type:        jsonschema.Boolean,
			Description: "Whether the query is valid Cypher against the described schema",
		},
		"notes": {
			Type:        jsonschema.String,
			Description: "Short explanation of how the query was produced",
		},
	},
	Required:             []string{"query", "is_valid", "notes"},
	AdditionalProperties: false,
}

// legacySchema is the older, schema-blind contract kept as a fallback.
var legacySchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"query": {
			Type:        jsonschema.String,
			Description: "The Cypher query, or an empty string if none is present",
		},
	},
	Required:             []string{"query"},
	AdditionalProperties: false,
}

// regenerate asks the model to reconstruct the Cypher query behind an
// answer, grounded in the live graph schema so it uses real labels and
// relationship types.
func regenerate(ctx context.Context, chat ChatClient, model, answer string, schema graphstore.Schema) (Extraction, error) {
	prompt := fmt.Sprintf(
		"An assistant answered a question about a Neo4j graph database. "+
			"Reconstruct the single Cypher query that would produce the data behind the answer.\n\n"+
			"%s\n"+
			"A typical query looks like: MATCH (n:%s)-[r]->(m) RETURN n, r, m LIMIT 25\n\n"+
			"Answer:\n%s",
		describeSchema(schema), exampleLabel(schema), answer,
	)

	resp, err := chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You translate natural language answers about a graph into Cypher queries. Set is_valid to false when no faithful query can be written.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "cypher_extraction",
				Schema: &extractionSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to regenerate query; %w", err)
	}
	if len(resp.Choices) == 0 {
		return Extraction{}, fmt.Errorf("regeneration returned no choices")
	}

	var out Extraction
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Extraction{}, fmt.Errorf("failed to decode regenerated query; %w", err)
	}
	return out, nil
}

// legacyExtract is the schema-blind fallback, used only when the schema-aware
// pass could not complete.
func legacyExtract(ctx context.Context, chat ChatClient, model, answer string) (Extraction, error) {
	resp, err := chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Extract the Cypher query referenced in the text. Return an empty query if there is none.",
			},
			{Role: openai.ChatMessageRoleUser, Content: answer},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "cypher_query",
				Schema: &legacySchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("failed legacy extraction; %w", err)
	}
	if len(resp.Choices) == 0 {
		return Extraction{}, fmt.Errorf("legacy extraction returned no choices")
	}

	var out struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Extraction{}, fmt.Errorf("failed to decode legacy extraction; %w", err)
	}
	if out.Query == "" {
		return Extraction{Notes: "No query found"}, nil
	}
	return Extraction{Query: out.Query, IsValid: true, Notes: "Extracted without schema context"}, nil
}

// describeSchema renders the labels and relationship types for the prompt.
func describeSchema(schema graphstore.Schema) string {
	var b strings.Builder

	b.WriteString("Node labels: ")
	if len(schema.NodeLabels) == 0 {
		b.WriteString("(unknown)")
	}
	for i, label := range schema.NodeLabels {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(label.Label)
	}

	b.WriteString("\nRelationship types: ")
	if len(schema.RelationshipTypes) == 0 {
		b.WriteString("(unknown)")
	}
	for i, rel := range schema.RelationshipTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(rel.RelationshipType)
	}
	b.WriteString("\n")

	return b.String()
}

func exampleLabel(schema graphstore.Schema) string {
	if len(schema.NodeLabels) > 0 {
		return schema.NodeLabels[0].Label
	}
	return "Thing"
}

package nebuia

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Minimal-field schemas for success payloads. Unknown fields are allowed so
// the service can grow its responses without breaking us.
var (
	createContainerSchema = mustCompileSchema("create_container.json", map[string]any{
		"type":     "object",
		"required": []string{"id"},
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "minLength": 1},
		},
	})
	uploadSchema = mustCompileSchema("upload.json", map[string]any{
		"type":     "object",
		"required": []string{"document"},
		"properties": map[string]any{
			"document": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_id":   map[string]any{"type": "string"},
					"document_type": map[string]any{"type": "string"},
				},
			},
			"job_id": map[string]any{"type": []string{"string", "null"}},
		},
	})
	containerSchema = mustCompileSchema("container.json", map[string]any{
		"type":     "object",
		"required": []string{"id", "status"},
		"properties": map[string]any{
			"id":            map[string]any{"type": "string", "minLength": 1},
			"status":        map[string]any{"type": "string"},
			"is_processing": map[string]any{"type": []string{"boolean", "null"}},
			"documents": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []string{"document_id", "document_type"},
					"properties": map[string]any{
						"document_id":   map[string]any{"type": "string"},
						"document_type": map[string]any{"type": "string"},
						"entities":      map[string]any{"type": []string{"array", "null"}},
					},
				},
			},
		},
	})
	documentStatusSchema = mustCompileSchema("document_status.json", map[string]any{
		"type":     "object",
		"required": []string{"status"},
		"properties": map[string]any{
			"status": map[string]any{"type": "string"},
		},
	})
	verifySchema = mustCompileSchema("verify.json", map[string]any{
		"type":     "object",
		"required": []string{"status"},
		"properties": map[string]any{
			"status":              map[string]any{"type": "boolean"},
			"type_document_found": map[string]any{"type": []string{"string", "null"}},
			"points": map[string]any{
				"type":  []string{"array", "null"},
				"items": map[string]any{"type": "string"},
			},
		},
	})
	jobSchema = mustCompileSchema("job.json", map[string]any{
		"type":     "object",
		"required": []string{"status"},
		"properties": map[string]any{
			"job_id":  map[string]any{"type": []string{"string", "null"}},
			"status":  map[string]any{"type": "string"},
			"message": map[string]any{"type": []string{"string", "null"}},
			"missing_documents": map[string]any{
				"type":  []string{"array", "null"},
				"items": map[string]any{"type": "string"},
			},
		},
	})
	configurationSchema = mustCompileSchema("configuration.json", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"documents": map[string]any{"type": []string{"object", "null"}},
		},
	})
)

func mustCompileSchema(name string, schemaMap map[string]any) *jsonschema.Schema {
	s, err := compileSchema(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validatePayload checks raw against schema.
func validatePayload(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}

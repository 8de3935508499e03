package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LabelKey is the display-label key the service embeds in structured records.
const LabelKey = "name_to_show"

// ExtractedEntity is one structured record the service extracted from a
// document for a natural-language query.
type ExtractedEntity struct {
	Query     string
	Label     string
	Structure map[string]any
}

type wireEntity struct {
	Query     string          `json:"query,omitempty"`
	Question  string          `json:"question,omitempty"`
	Label     string          `json:"name_to_show,omitempty"`
	Structure json.RawMessage `json:"structure,omitempty"`
}

// UnmarshalJSON accepts structures sent either as an object or as a
// JSON-encoded string holding an object. Anything else leaves Structure nil.
func (e *ExtractedEntity) UnmarshalJSON(b []byte) error {
	var w wireEntity
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	e.Query = w.Query
	if e.Query == "" {
		e.Query = w.Question
	}
	e.Label = w.Label
	e.Structure = decodeStructure(w.Structure)
	if e.Label == "" && e.Structure != nil {
		if s, ok := e.Structure[LabelKey].(string); ok {
			e.Label = s
		}
	}
	return nil
}

// MarshalJSON writes the canonical object form.
func (e ExtractedEntity) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if e.Query != "" {
		out["query"] = e.Query
	}
	if e.Label != "" {
		out[LabelKey] = e.Label
	}
	if e.Structure != nil {
		out["structure"] = e.Structure
	}
	return json.Marshal(out)
}

func decodeStructure(raw json.RawMessage) map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = []byte(s)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

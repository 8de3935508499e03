package entity

// VerificationOutcome is the service's verdict on one document's declared type.
type VerificationOutcome struct {
	Match     bool     `json:"status"`
	FoundType string   `json:"type_document_found,omitempty"`
	Points    []string `json:"points,omitempty"`
	// Error is set when the service rejected the verification call itself.
	Error string `json:"error,omitempty"`
}

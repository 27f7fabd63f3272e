package medverify

import (
	"encoding/json"
	"fmt"
)

// OCRResult is the response of the photo scan endpoint. Fields holds the
// payload exactly as the service returned it; the typed members are the
// only entries the scan pipeline reads and are nil when absent or not
// strings.
type OCRResult struct {
	Fields     map[string]any
	TitleText  *string
	BPOMNumber *string

	// UpstreamStatus is the service's status code when it answered with
	// something other than 200, and zero otherwise.
	UpstreamStatus int
}

// Failed reports whether the payload carries an error entry.
func (r *OCRResult) Failed() bool {
	_, ok := r.Fields["error"]
	return ok
}

// RawError returns the error entry as sent by the service.
func (r *OCRResult) RawError() any {
	return r.Fields["error"]
}

// HasText reports whether OCR produced a title or a registry number.
func (r *OCRResult) HasText() bool {
	return nonEmpty(r.TitleText) || nonEmpty(r.BPOMNumber)
}

func (r OCRResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields)
}

// NewOCRResult decodes the typed view of a photo scan payload.
func NewOCRResult(fields map[string]any) *OCRResult {
	return &OCRResult{
		Fields:     fields,
		TitleText:  stringField(fields, "title_text"),
		BPOMNumber: stringField(fields, "bpom_number"),
	}
}

func ocrError(msg string) *OCRResult {
	return NewOCRResult(map[string]any{"error": msg})
}

// Product is the registry entry of a verified product.
type Product struct {
	NIE          *string
	Name         *string
	Manufacturer *string
}

// VerifyResult is the response of the verification endpoint. As with
// OCRResult, Fields is authoritative and the typed members are a
// read-only view.
type VerifyResult struct {
	Fields     map[string]any
	Status     *string
	Source     *string
	Confidence *float64
	Product    *Product
	Error      *string

	UpstreamStatus int
}

// Failed reports whether the payload carries a non-empty error entry.
func (r *VerifyResult) Failed() bool {
	return truthy(r.Fields["error"])
}

func (r VerifyResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields)
}

// NewVerifyResult decodes the typed view of a verification payload.
func NewVerifyResult(fields map[string]any) *VerifyResult {
	r := &VerifyResult{
		Fields:     fields,
		Status:     stringField(fields, "status"),
		Source:     stringField(fields, "source"),
		Confidence: numberField(fields, "confidence"),
		Error:      stringField(fields, "error"),
	}
	if data, ok := fields["data"].(map[string]any); ok {
		if p, ok := data["product"].(map[string]any); ok {
			r.Product = &Product{
				NIE:          stringField(p, "nie"),
				Name:         stringField(p, "name"),
				Manufacturer: stringField(p, "manufacturer"),
			}
		}
	}
	return r
}

func verifyError(msg string) *VerifyResult {
	return NewVerifyResult(map[string]any{"error": msg})
}

func stringField(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func numberField(m map[string]any, key string) *float64 {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// truthy follows the loose truth rules JSON clients of the service use:
// null, false, zero and empty values are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return fmt.Sprint(t) != ""
	}
}

// AgentResult is the response of the conversational agent endpoint.
type AgentResult struct {
	Fields         map[string]any
	UpstreamStatus int
}

// Failed reports whether the payload carries a non-empty error entry.
func (r *AgentResult) Failed() bool {
	return truthy(r.Fields["error"])
}

func (r AgentResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields)
}

func NewAgentResult(fields map[string]any) *AgentResult {
	return &AgentResult{Fields: fields}
}

func agentError(msg string) *AgentResult {
	return NewAgentResult(map[string]any{"error": msg})
}

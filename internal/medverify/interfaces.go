package medverify

import "context"

// Service abstracts the MedVerify API operations.
// This interface allows for easy mocking in tests.
type Service interface {
	// OCR extracts the product title and registry number from a photo.
	OCR(ctx context.Context, image []byte, contentType, sessionID string) *OCRResult

	// Verify checks a registry number and/or product text against the registry.
	Verify(ctx context.Context, nie, text, sessionID string) *VerifyResult

	// Agent asks the assistant a question in the context of a scan session.
	Agent(ctx context.Context, sessionID, text string) *AgentResult

	// Configured reports whether the service has a base URL and API key.
	Configured() bool
}

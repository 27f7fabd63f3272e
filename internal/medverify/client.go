package medverify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/curaai/yolo-medverify/internal/metrics"
)

const (
	// DefaultTimeout bounds every call to the service.
	DefaultTimeout = 30 * time.Second

	scanPhotoPath = "/v1/scan/photo"
	verifyPath    = "/v1/verify"
	agentPath     = "/v1/agent"

	headerAPIKey    = "X-Api-Key"
	headerSessionID = "X-Session-Id"
)

// Messages returned in place of a payload when the service answers with a
// non-200 status.
const (
	msgOCRFailed    = "OCR processing failed"
	msgVerifyFailed = "Verification failed"
	msgAgentFailed  = "Agent request failed"
)

type ClientOpts struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the MedVerify OCR and registry service. It holds no
// per-request state and is safe for concurrent use. Calls are never
// retried.
type Client struct {
	httpClient *resty.Client
	baseURL    string
	apiKey     string
}

var _ Service = (*Client)(nil)

func NewClient(opts ClientOpts) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := Client{baseURL: opts.BaseURL, apiKey: opts.APIKey}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetHeader(headerAPIKey, opts.APIKey)

	return &c
}

// Configured reports whether both a base URL and an API key are set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// OCR uploads the photo for text extraction. Failures are reported in the
// result's error entry, never as a Go error.
func (c *Client) OCR(ctx context.Context, image []byte, contentType, sessionID string) *OCRResult {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req := c.httpClient.R().
		SetHeader(headerSessionID, sessionID).
		SetMultipartField("img", "scan.jpg", contentType, bytes.NewReader(image)).
		SetFormData(map[string]string{"return_partial": "true"})

	fields, err := c.post(ctx, "ocr", scanPhotoPath, sessionID, req)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			res := ocrError(msgOCRFailed)
			res.UpstreamStatus = se.status
			return res
		}
		return ocrError(err.Error())
	}
	return NewOCRResult(fields)
}

// Verify looks up a registry number and/or product text. Empty values are
// left out of the request body; the session header is only sent when
// sessionID is set.
func (c *Client) Verify(ctx context.Context, nie, text, sessionID string) *VerifyResult {
	payload := map[string]string{}
	if nie != "" {
		payload["nie"] = nie
	}
	if text != "" {
		payload["text"] = text
	}

	req := c.httpClient.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	if sessionID != "" {
		req.SetHeader(headerSessionID, sessionID)
	}

	fields, err := c.post(ctx, "verify", verifyPath, sessionID, req)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			res := verifyError(msgVerifyFailed)
			res.UpstreamStatus = se.status
			return res
		}
		return verifyError(err.Error())
	}
	return NewVerifyResult(fields)
}

// Agent sends a follow-up question about a scan session to the service's
// assistant.
func (c *Client) Agent(ctx context.Context, sessionID, text string) *AgentResult {
	req := c.httpClient.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"session_id": sessionID, "text": text})

	fields, err := c.post(ctx, "agent", agentPath, sessionID, req)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			res := agentError(msgAgentFailed)
			res.UpstreamStatus = se.status
			return res
		}
		return agentError(err.Error())
	}
	return NewAgentResult(fields)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// post sends req and decodes a JSON object from a 200 response.
func (c *Client) post(ctx context.Context, endpoint, path, sessionID string, req *resty.Request) (map[string]any, error) {
	start := time.Now()
	res, err := req.SetContext(ctx).Post(path)
	duration := time.Since(start)
	if err == nil && res.StatusCode() != http.StatusOK {
		err = &statusError{status: res.StatusCode(), body: res.String()}
	}

	var fields map[string]any
	if err == nil {
		if err = json.Unmarshal(res.Body(), &fields); err != nil {
			err = fmt.Errorf("failed to decode response: %w", err)
		} else if fields == nil {
			fields = map[string]any{}
		}
	}

	if err != nil {
		metrics.ObserveOutbound(endpoint, "error", duration)
		log.Error().
			Err(err).
			Str("endpoint", endpoint).
			Str("sessionID", sessionID).
			Dur("duration", duration).
			Msg("medverify call failed")
		return nil, err
	}

	metrics.ObserveOutbound(endpoint, "ok", duration)
	log.Info().
		Str("endpoint", endpoint).
		Str("sessionID", sessionID).
		Dur("duration", duration).
		Msg("medverify call")
	return fields, nil
}

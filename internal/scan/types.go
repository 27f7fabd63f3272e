package scan

import (
	"encoding/json"

	"github.com/curaai/yolo-medverify/internal/detector"
	"github.com/curaai/yolo-medverify/internal/medverify"
)

// Messages shown to the caller for each outcome.
const (
	MsgDetectionNotOptimal = "Detection not optimal. Make sure the product is clearly visible to the camera."
	MsgOCRFailed           = "Failed to run OCR on the image"
	MsgScanSucceeded       = "Scan successful! The product has been verified."
)

// Outcome is how far a scan got through the pipeline.
type Outcome string

const (
	OutcomeGated      Outcome = "gated"
	OutcomeOCRFailed  Outcome = "ocr_failed"
	OutcomeVerified   Outcome = "verified"
	OutcomeUnverified Outcome = "unverified"
)

// Upload is one image received from a caller.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// InputError reports an upload the pipeline refuses to process.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

// YoloResult summarizes the detector output for one request.
type YoloResult struct {
	Detections []detector.Detection `json:"detections"`
	HasBody    bool                 `json:"has_body"`
	HasTitle   bool                 `json:"has_title"`
	SessionID  string               `json:"session_id"`
}

// Response is the result of one scan. Its JSON form depends on Outcome.
type Response struct {
	Outcome      Outcome
	Success      bool
	Message      string
	SessionID    string
	YoloResult   *YoloResult
	OCRResult    *medverify.OCRResult
	OCRError     any
	VerifyResult *medverify.VerifyResult
}

// MarshalJSON renders the response. A successful verification has its
// fields copied to the top level as well, overriding any key of the same
// name.
func (r Response) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"success":     r.Success,
		"message":     r.Message,
		"yolo_result": r.YoloResult,
	}

	switch r.Outcome {
	case OutcomeGated:
	case OutcomeOCRFailed:
		out["ocr_error"] = r.OCRError
	default:
		out["session_id"] = r.SessionID
		out["ocr_result"] = r.OCRResult
		if r.VerifyResult != nil {
			out["verify_result"] = r.VerifyResult
			if !r.VerifyResult.Failed() {
				for k, v := range r.VerifyResult.Fields {
					out[k] = v
				}
			}
		}
	}

	return json.Marshal(out)
}

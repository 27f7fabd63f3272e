package scan

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"github.com/curaai/yolo-medverify/internal/detector"
	"github.com/curaai/yolo-medverify/internal/medverify"
	"github.com/curaai/yolo-medverify/internal/metrics"
)

// GateConfidence is the score body and title detections must exceed
// before the photo is sent for OCR.
const GateConfidence = 0.8

// MaxImagePixels bounds the decoded size of an upload. Compressed formats
// can declare far more pixels than their byte size suggests.
const MaxImagePixels = 2 * 89478485

// Verifier is the part of the MedVerify service a scan uses.
type Verifier interface {
	OCR(ctx context.Context, image []byte, contentType, sessionID string) *medverify.OCRResult
	Verify(ctx context.Context, nie, text, sessionID string) *medverify.VerifyResult
}

// Scanner runs the detect, gate, OCR and verify pipeline for one photo at
// a time. It keeps no per-request state and can serve requests
// concurrently.
type Scanner struct {
	detector     detector.Detector
	verifier     Verifier
	newSessionID func() string
}

func NewScanner(d detector.Detector, v Verifier) *Scanner {
	return &Scanner{
		detector:     d,
		verifier:     v,
		newSessionID: func() string { return uuid.New().String() },
	}
}

// Scan processes one upload. An *InputError means the upload was refused
// before any work was done; any other error is an internal failure.
// Rejections by the gate or by OCR are reported in the Response.
//
// Calls to the MedVerify service are detached from ctx cancellation, so
// a caller hanging up does not abort them; the client timeout still
// applies.
func (s *Scanner) Scan(ctx context.Context, up Upload) (*Response, error) {
	if !strings.HasPrefix(up.ContentType, "image/") {
		return nil, &InputError{Msg: "File must be an image"}
	}

	img, err := DecodeImage(up.Data)
	if err != nil {
		metrics.ObserveScan(metrics.OutcomeError)
		return nil, err
	}
	frame := detector.NewFrame(img)

	sessionID := s.newSessionID()
	detections := s.detector.Detect(ctx, frame)
	if detections == nil {
		detections = []detector.Detection{}
	}
	for _, d := range detections {
		metrics.ObserveDetection(d.Class)
	}

	yolo := &YoloResult{
		Detections: detections,
		HasBody:    PassesGate(detections, detector.ClassBody),
		HasTitle:   PassesGate(detections, detector.ClassTitle),
		SessionID:  sessionID,
	}

	logger := log.With().Str("sessionID", sessionID).Logger()
	logger.Info().
		Int("detections", len(detections)).
		Bool("hasBody", yolo.HasBody).
		Bool("hasTitle", yolo.HasTitle).
		Int("width", frame.Width).
		Int("height", frame.Height).
		Msg("yolo scan")

	if !yolo.HasBody || !yolo.HasTitle {
		return s.finish(&Response{
			Outcome:    OutcomeGated,
			Success:    false,
			Message:    MsgDetectionNotOptimal,
			YoloResult: yolo,
		}), nil
	}

	outbound := context.WithoutCancel(ctx)

	ocr := s.verifier.OCR(outbound, up.Data, up.ContentType, sessionID)
	if ocr.Failed() {
		logger.Warn().Interface("ocrError", ocr.RawError()).Msg("ocr failed")
		return s.finish(&Response{
			Outcome:    OutcomeOCRFailed,
			Success:    false,
			Message:    MsgOCRFailed,
			YoloResult: yolo,
			OCRError:   ocr.RawError(),
		}), nil
	}

	var verify *medverify.VerifyResult
	if ocr.HasText() {
		verify = s.verifier.Verify(outbound, deref(ocr.BPOMNumber), deref(ocr.TitleText), sessionID)
		logVerification(logger, verify)
	}

	outcome := OutcomeUnverified
	if verify != nil && !verify.Failed() {
		outcome = OutcomeVerified
	}
	return s.finish(&Response{
		Outcome:      outcome,
		Success:      true,
		Message:      MsgScanSucceeded,
		SessionID:    sessionID,
		YoloResult:   yolo,
		OCRResult:    ocr,
		VerifyResult: verify,
	}), nil
}

// DecodeImage decodes an upload. It reads the header first so oversized
// images are refused before any pixel memory is allocated.
func DecodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxImagePixels {
		return nil, fmt.Errorf("image size (%d pixels) exceeds limit of %d pixels", pixels, MaxImagePixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}
	return img, nil
}

func logVerification(logger zerolog.Logger, v *medverify.VerifyResult) {
	event := logger.Info()
	if v.Failed() {
		event = logger.Warn()
		if v.Error != nil {
			event = event.Str("verifyError", *v.Error)
		}
	}
	if v.Status != nil {
		event = event.Str("status", *v.Status)
	}
	if v.Source != nil {
		event = event.Str("source", *v.Source)
	}
	if v.Confidence != nil {
		event = event.Float64("confidence", *v.Confidence)
	}
	if p := v.Product; p != nil {
		if p.NIE != nil {
			event = event.Str("nie", *p.NIE)
		}
		if p.Name != nil {
			event = event.Str("product", *p.Name)
		}
		if p.Manufacturer != nil {
			event = event.Str("manufacturer", *p.Manufacturer)
		}
	}
	event.Bool("failed", v.Failed()).Msg("verification")
}

func (s *Scanner) finish(r *Response) *Response {
	metrics.ObserveScan(string(r.Outcome))
	return r
}

// PassesGate reports whether any detection of class scores above
// GateConfidence.
func PassesGate(detections []detector.Detection, class string) bool {
	for _, d := range detections {
		if d.Class == class && d.Confidence > GateConfidence {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

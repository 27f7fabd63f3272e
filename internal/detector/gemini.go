package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiDetectModel = "gemini-2.5-flash"

var geminiDetectPrompt = strings.TrimSpace(dedent.Dedent(`
	Detect the regions of the medicine or food product packaging in this photo.

	Use exactly these labels:
	- body: the whole visible product package
	- title: the printed product name on the package

	Respond with a JSON array. Each element has:
	- label: "body" or "title"
	- confidence: a number between 0 and 1
	- box_2d: [ymin, xmin, ymax, xmax] normalized to 0-1000

	Example: [{"label": "body", "confidence": 0.93, "box_2d": [120, 80, 900, 610]}]

	Return an empty array if no product is visible. Respond ONLY with the JSON array.
`))

// GeminiDetector asks a Gemini vision model for product regions. It is an
// alternative to a local ONNX model when none is available on the host.
type GeminiDetector struct {
	client *genai.Client
	model  string
}

var _ Detector = (*GeminiDetector)(nil)

// NewGeminiDetector creates a detector authenticated with apiKey.
func NewGeminiDetector(ctx context.Context, apiKey string) (*GeminiDetector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiDetector{client: client, model: geminiDetectModel}, nil
}

func (g *GeminiDetector) Detect(ctx context.Context, frame *Frame) []Detection {
	detections, err := g.detect(ctx, frame)
	if err != nil {
		log.Error().Err(err).Msg("gemini detection error")
		return []Detection{}
	}
	return detections
}

func (g *GeminiDetector) detect(ctx context.Context, frame *Frame) ([]Detection, error) {
	if frame == nil || frame.Width == 0 || frame.Height == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame.Image(), imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(geminiDetectPrompt),
		{InlineData: &genai.Blob{Data: buf.Bytes(), MIMEType: "image/jpeg"}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	if result.UsageMetadata != nil {
		log.Info().
			Str("model", g.model).
			Int32("inputTokens", result.UsageMetadata.PromptTokenCount).
			Int32("outputTokens", result.UsageMetadata.CandidatesTokenCount).
			Msg("vision detection call")
	}

	return parseGeminiBoxes(result.Text(), frame.Width, frame.Height)
}

type geminiBox struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box2D      [4]float64 `json:"box_2d"`
}

// parseGeminiBoxes converts Gemini's normalized [ymin, xmin, ymax, xmax]
// boxes into pixel detections, dropping those at or under the threshold.
func parseGeminiBoxes(text string, width, height int) ([]Detection, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response: %s", text)
	}

	var boxes []geminiBox
	if err := json.Unmarshal([]byte(text[start:end+1]), &boxes); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	sx := float64(width) / 1000
	sy := float64(height) / 1000
	detections := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence <= ConfidenceThreshold {
			continue
		}
		ymin, xmin, ymax, xmax := b.Box2D[0], b.Box2D[1], b.Box2D[2], b.Box2D[3]
		detections = append(detections, Detection{
			Class:      strings.ToLower(strings.TrimSpace(b.Label)),
			Confidence: b.Confidence,
			BBox:       cornersToBox(xmin*sx, ymin*sy, xmax*sx, ymax*sy),
		})
	}
	return detections, nil
}

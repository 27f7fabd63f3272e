package detector

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_ReturnsFixedDetections(t *testing.T) {
	got := Fallback{}.Detect(context.Background(), nil)

	assert.Equal(t, []Detection{
		{Class: "body", Confidence: 0.91, BBox: [4]float64{50, 100, 200, 400}},
		{Class: "title", Confidence: 0.89, BBox: [4]float64{80, 200, 150, 100}},
	}, got)
}

func TestLoad_MissingModelFallsBack(t *testing.T) {
	d, loaded := Load(context.Background(), Options{
		Backend:   BackendONNX,
		ModelPath: filepath.Join(t.TempDir(), "missing.onnx"),
	})

	assert.False(t, loaded)
	assert.IsType(t, Fallback{}, d)
}

func TestLoad_GeminiWithoutKeyFallsBack(t *testing.T) {
	d, loaded := Load(context.Background(), Options{Backend: BackendGemini})

	assert.False(t, loaded)
	assert.IsType(t, Fallback{}, d)
}

func TestLoad_UnknownBackendFallsBack(t *testing.T) {
	d, loaded := Load(context.Background(), Options{Backend: "tflite"})

	assert.False(t, loaded)
	assert.IsType(t, Fallback{}, d)
}

func TestNewFrame_ConvertsToBGR(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	f := NewFrame(img)

	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 1, f.Height)
	assert.Equal(t, []byte{30, 20, 10, 50, 100, 200}, f.Pix)

	r, g, b := f.At(1, 0)
	assert.Equal(t, [3]uint8{200, 100, 50}, [3]uint8{r, g, b})
}

func TestFrame_ImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 90), B: 7, A: 255})
		}
	}

	out := NewFrame(src).Image()

	assert.Equal(t, src.Pix, out.Pix)
}

func TestCornersToBox(t *testing.T) {
	assert.Equal(t, [4]float64{10, 20, 30, 60}, cornersToBox(10, 20, 40, 80))
}

func TestNewLetterbox(t *testing.T) {
	lb := newLetterbox(1280, 640, 640)

	assert.Equal(t, 0.5, lb.gain)
	assert.Equal(t, 640, lb.width)
	assert.Equal(t, 320, lb.height)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 160, lb.padY)
}

func TestToTensor_ShapeAndPadding(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	data, lb := toTensor(NewFrame(img), 8)

	require.Len(t, data, 3*8*8)
	assert.Equal(t, 2, lb.padY)
	// top padding row is letterbox gray, the image area is white
	assert.InDelta(t, 114.0/255, data[0], 1e-6)
	assert.InDelta(t, 1.0, data[3*8], 1e-6)
}

// output builds a [rows, anchors] tensor from per-anchor columns.
func output(cols ...[]float32) []float32 {
	rows := len(cols[0])
	out := make([]float32, rows*len(cols))
	for a, col := range cols {
		for r, v := range col {
			out[r*len(cols)+a] = v
		}
	}
	return out
}

func TestDecodeOutput(t *testing.T) {
	labels := map[int]string{0: "body", 1: "title"}
	// 640x640 frame into a 640 input: gain 1, no padding
	lb := newLetterbox(640, 640, 640)

	raw := output(
		[]float32{100, 200, 40, 80, 0.9, 0.1},  // body, kept
		[]float32{300, 300, 20, 20, 0.2, 0.75}, // title, kept
		[]float32{50, 50, 10, 10, 0.3, 0.5},    // exactly threshold, dropped
		[]float32{102, 201, 40, 80, 0.85, 0.0}, // overlaps first body, suppressed
	)

	got, err := decodeOutput(raw, 6, 4, lb, 640, 640, labels)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "body", got[0].Class)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-6)
	assert.Equal(t, [4]float64{80, 160, 40, 80}, got[0].BBox)

	assert.Equal(t, "title", got[1].Class)
	assert.Equal(t, [4]float64{290, 290, 20, 20}, got[1].BBox)
}

func TestDecodeOutput_UnscalesLetterbox(t *testing.T) {
	// 1280x640 frame: gain 0.5, padY 160
	lb := newLetterbox(1280, 640, 640)
	raw := output([]float32{320, 320, 100, 100, 0.95})

	got, err := decodeOutput(raw, 5, 1, lb, 1280, 640, map[int]string{0: "body"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, [4]float64{540, 220, 200, 200}, got[0].BBox)
}

func TestDecodeOutput_UnknownClassUsesID(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	raw := output([]float32{10, 10, 4, 4, 0.1, 0.99})

	got, err := decodeOutput(raw, 6, 1, lb, 640, 640, map[int]string{0: "body"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Class)
}

func TestDecodeOutput_BadShape(t *testing.T) {
	_, err := decodeOutput([]float32{1, 2}, 6, 1, letterbox{gain: 1}, 10, 10, nil)
	assert.Error(t, err)

	_, err = decodeOutput(nil, 4, 0, letterbox{gain: 1}, 10, 10, nil)
	assert.Error(t, err)
}

func TestParseLabels(t *testing.T) {
	assert.Equal(t, map[int]string{0: "body", 1: "title"}, parseLabels("{0: 'body', 1: 'title'}"))
	assert.Equal(t, map[int]string{3: "cap"}, parseLabels(`{3: "cap"}`))
	assert.Empty(t, parseLabels("not a table"))
}

func TestParseGeminiBoxes(t *testing.T) {
	text := "```json\n" + `[
		{"label": "Body", "confidence": 0.92, "box_2d": [100, 200, 600, 700]},
		{"label": "title", "confidence": 0.5, "box_2d": [0, 0, 10, 10]}
	]` + "\n```"

	got, err := parseGeminiBoxes(text, 1000, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "body", got[0].Class)
	assert.Equal(t, 0.92, got[0].Confidence)
	assert.InDeltaSlice(t, []float64{200, 50, 500, 250}, got[0].BBox[:], 1e-9)
}

func TestParseGeminiBoxes_NoArray(t *testing.T) {
	_, err := parseGeminiBoxes("no boxes here", 10, 10)
	assert.Error(t, err)
}

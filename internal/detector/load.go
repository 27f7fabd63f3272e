package detector

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Backends accepted by Load.
const (
	BackendONNX   = "onnx"
	BackendGemini = "gemini"
	BackendMock   = "mock"
)

// Options selects and configures the detector backend.
type Options struct {
	Backend      string
	ModelPath    string
	LibraryPath  string
	GeminiAPIKey string
}

// Load builds the configured detector. Load failures are not fatal: the
// Fallback detector is returned instead and loaded reports false.
func Load(ctx context.Context, opts Options) (d Detector, loaded bool) {
	switch opts.Backend {
	case BackendMock:
		log.Info().Msg("using mock detections")
		return Fallback{}, false
	case BackendGemini:
		g, err := NewGeminiDetector(ctx, opts.GeminiAPIKey)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize gemini detector, using mock detections")
			return Fallback{}, false
		}
		log.Info().Str("model", g.model).Msg("gemini detector initialized")
		return g, true
	case BackendONNX, "":
		log.Info().Str("model", opts.ModelPath).Msg("loading yolo model")
		o, err := LoadONNX(opts.ModelPath, opts.LibraryPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to load yolo model, using mock detections")
			return Fallback{}, false
		}
		return o, true
	default:
		log.Warn().Str("backend", opts.Backend).Msg("unknown detector backend, using mock detections")
		return Fallback{}, false
	}
}

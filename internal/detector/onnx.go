package detector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXDetector runs a YOLOv8 model exported to ONNX by ultralytics.
// The session is created once and only read afterwards; each call
// allocates its own tensors, so Detect is safe for concurrent use.
type ONNXDetector struct {
	session     *ort.DynamicAdvancedSession
	labels      map[int]string
	inputSize   int
	outputShape ort.Shape
}

var _ Detector = (*ONNXDetector)(nil)

// LoadONNX loads the model at modelPath. libPath optionally points at the
// onnxruntime shared library; when empty the platform default is used.
func LoadONNX(modelPath, libPath string) (*ONNXDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs and outputs: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}

	inputSize := defaultInputSize
	if dims := inputs[0].Dimensions; len(dims) == 4 && dims[2] > 0 {
		inputSize = int(dims[2])
	}
	outShape := outputs[0].Dimensions
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}
	for _, d := range outShape {
		if d <= 0 {
			return nil, fmt.Errorf("model output shape %v must be static", outShape)
		}
	}

	labels, err := readLabels(modelPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("model", modelPath).
		Int("inputSize", inputSize).
		Interface("labels", labels).
		Msg("onnx model loaded")

	return &ONNXDetector{
		session:     session,
		labels:      labels,
		inputSize:   inputSize,
		outputShape: outShape,
	}, nil
}

func readLabels(modelPath string) (map[int]string, error) {
	md, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	defer md.Destroy()

	names, ok, err := md.LookupCustomMetadataMap("names")
	if err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("model metadata has no class names")
	}
	labels := parseLabels(names)
	if len(labels) == 0 {
		return nil, fmt.Errorf("could not parse class names %q", names)
	}
	return labels, nil
}

func (d *ONNXDetector) Detect(ctx context.Context, frame *Frame) []Detection {
	start := time.Now()
	detections, err := d.infer(frame)
	if err != nil {
		log.Error().Err(err).Msg("yolo inference error")
		return []Detection{}
	}
	log.Debug().
		Int("count", len(detections)).
		Dur("duration", time.Since(start)).
		Msg("yolo inference")
	return detections
}

func (d *ONNXDetector) infer(frame *Frame) ([]Detection, error) {
	if frame == nil || frame.Width == 0 || frame.Height == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	data, lb := toTensor(frame, d.inputSize)
	size := int64(d.inputSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](d.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := d.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("failed to run session: %w", err)
	}

	rows, anchors := int(d.outputShape[1]), int(d.outputShape[2])
	return decodeOutput(output.GetData(), rows, anchors, lb, frame.Width, frame.Height, d.labels)
}

// Close releases the session.
func (d *ONNXDetector) Close() error {
	return d.session.Destroy()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/curaai/yolo-medverify/config"
	"github.com/curaai/yolo-medverify/internal/detector"
	"github.com/curaai/yolo-medverify/internal/scan"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [onnx|gemini|mock]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  ONNXRUNTIME_LIB - Path to the onnxruntime shared library (onnx)\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY  - Required for gemini\n")
		os.Exit(1)
	}

	imagePath := os.Args[1]
	backend := detector.BackendONNX
	if len(os.Args) >= 3 {
		backend = os.Args[2]
	}
	switch backend {
	case detector.BackendONNX, detector.BackendGemini, detector.BackendMock:
	default:
		fmt.Fprintf(os.Stderr, "Unknown backend: %s (use onnx, gemini, or mock)\n", backend)
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg := config.Load()

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	img, err := scan.DecodeImage(imageData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	det, loaded := detector.Load(ctx, detector.Options{
		Backend:      backend,
		ModelPath:    config.ModelPath,
		LibraryPath:  cfg.OnnxRuntimeLib,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	if c, ok := det.(io.Closer); ok {
		defer c.Close()
	}

	frame := detector.NewFrame(img)
	fmt.Printf("=== %s ===\n", strings.ToUpper(backend))
	if !loaded {
		fmt.Println("(detector not loaded, showing mock detections)")
	}
	fmt.Printf("Image:       %s (%dx%d)\n\n", filepath.Base(imagePath), frame.Width, frame.Height)

	detections := det.Detect(ctx, frame)
	printDetections(detections)
}

func printDetections(detections []detector.Detection) {
	if len(detections) == 0 {
		fmt.Println("No detections")
	}
	for _, d := range detections {
		fmt.Printf("%-6s %.3f  x=%.0f y=%.0f w=%.0f h=%.0f\n",
			d.Class, d.Confidence, d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
	}
	fmt.Println()

	hasBody := scan.PassesGate(detections, detector.ClassBody)
	hasTitle := scan.PassesGate(detections, detector.ClassTitle)
	fmt.Printf("Body:        %v\n", hasBody)
	fmt.Printf("Title:       %v\n", hasTitle)
	if hasBody && hasTitle {
		fmt.Println("Gate:        pass")
	} else {
		fmt.Printf("Gate:        fail (%s)\n", scan.MsgDetectionNotOptimal)
	}
}

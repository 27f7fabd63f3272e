package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	AppName     = "yolo-medverify"
	EnvFileName = "config.env"

	// ModelPath is where the detector weights are expected, relative to the
	// working directory.
	ModelPath = "models/medverify-yolo.onnx"

	DefaultListenAddr = "127.0.0.1:8000"
	DefaultDetector   = "onnx"
)

// Config holds the process settings read from the environment.
type Config struct {
	MedverifyBaseURL string
	MedverifyAPIKey  string
	ListenAddr       string
	Detector         string
	OnnxRuntimeLib   string
	GeminiAPIKey     string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory, then from .env in the working directory. Variables that
// are already set are not overridden. Errors are ignored since the files may
// not exist.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load(".env")
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	return Config{
		MedverifyBaseURL: os.Getenv("MEDVERIFY_BASE_URL"),
		MedverifyAPIKey:  os.Getenv("MEDVERIFY_API_KEY"),
		ListenAddr:       getenv("LISTEN_ADDR", DefaultListenAddr),
		Detector:         getenv("DETECTOR", DefaultDetector),
		OnnxRuntimeLib:   os.Getenv("ONNXRUNTIME_LIB"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
	}
}

// Missing returns the names of variables the chosen setup needs but lacks.
// An unconfigured MedVerify service is not fatal; /health reports it.
func (c Config) Missing() []string {
	var missing []string
	if c.Detector == "gemini" && c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	return missing
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

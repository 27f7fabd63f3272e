package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/curaai/yolo-medverify/config"
	"github.com/curaai/yolo-medverify/internal/detector"
	"github.com/curaai/yolo-medverify/internal/medverify"
	"github.com/curaai/yolo-medverify/internal/scan"
	"github.com/curaai/yolo-medverify/internal/server"
)

const logFileName = "yolo-medverify.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()
	cfg := config.Load()

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd, journald handles it.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatal("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		fatal("missing required config: %s", strings.Join(missing, ", "))
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	det, modelLoaded := detector.Load(ctx, detector.Options{
		Backend:      cfg.Detector,
		ModelPath:    config.ModelPath,
		LibraryPath:  cfg.OnnxRuntimeLib,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	if c, ok := det.(io.Closer); ok {
		defer c.Close()
	}

	client := medverify.NewClient(medverify.ClientOpts{
		BaseURL: cfg.MedverifyBaseURL,
		APIKey:  cfg.MedverifyAPIKey,
	})
	if !client.Configured() {
		log.Warn().Msg("MEDVERIFY_BASE_URL or MEDVERIFY_API_KEY is not set, OCR and verification calls will fail")
	}

	srv := server.New(scan.NewScanner(det, client), client, modelLoaded)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.ListenAddr)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}

func fatal(format string, args ...any) {
	log.Error().Msgf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

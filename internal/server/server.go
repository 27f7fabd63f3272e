package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/curaai/yolo-medverify/internal/medverify"
	"github.com/curaai/yolo-medverify/internal/metrics"
	"github.com/curaai/yolo-medverify/internal/scan"
)

const shutdownTimeout = 10 * time.Second

// Scanner runs the scan pipeline for one upload.
type Scanner interface {
	Scan(ctx context.Context, up scan.Upload) (*scan.Response, error)
}

// Server exposes the scan pipeline and MedVerify passthroughs over HTTP.
type Server struct {
	scanner     Scanner
	service     medverify.Service
	modelLoaded bool
	handler     http.Handler
}

// New wires the routes. modelLoaded is reported by /health.
func New(scanner Scanner, service medverify.Service, modelLoaded bool) *Server {
	s := &Server{
		scanner:     scanner,
		service:     service,
		modelLoaded: modelLoaded,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /yolo-scan", s.handleScan)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /scan", s.handleOCR)
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("POST /agent", s.handleAgent)
	mux.Handle("GET /metrics", metrics.Handler())

	s.handler = recoverer(requestLogger(cors(mux)))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, scanField)
	if err != nil {
		respondDetail(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.scanner.Scan(r.Context(), *up)
	if err != nil {
		var inputErr *scan.InputError
		if errors.As(err, &inputErr) {
			respondDetail(w, inputErr.Msg, http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("filename", up.Filename).Msg("yolo scan error")
		respondDetail(w, fmt.Sprintf("Processing error: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, res, http.StatusOK)
}

type healthResponse struct {
	Status              string `json:"status"`
	ModelLoaded         bool   `json:"model_loaded"`
	MedverifyConfigured bool   `json:"medverify_configured"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, healthResponse{
		Status:              "healthy",
		ModelLoaded:         s.modelLoaded,
		MedverifyConfigured: s.service.Configured(),
	}, http.StatusOK)
}

// handleOCR forwards a photo to the OCR service without detection.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-Id")
	if sessionID == "" {
		respondError(w, "X-Session-Id header is required", http.StatusBadRequest)
		return
	}
	up, err := readUpload(w, r, ocrField)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := s.service.OCR(context.WithoutCancel(r.Context()), up.Data, up.ContentType, sessionID)
	if res.Failed() {
		respondJSON(w, map[string]any{"error": res.RawError()}, upstreamStatus(res.UpstreamStatus))
		return
	}
	respondJSON(w, withSuccess(res.Fields), http.StatusOK)
}

type verifyRequest struct {
	NIE  string `json:"nie"`
	Text string `json:"text"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.NIE == "" && req.Text == "" {
		respondError(w, "nie or text is required", http.StatusBadRequest)
		return
	}

	res := s.service.Verify(context.WithoutCancel(r.Context()), req.NIE, req.Text, r.Header.Get("X-Session-Id"))
	if res.Failed() {
		respondJSON(w, map[string]any{"error": res.Fields["error"]}, upstreamStatus(res.UpstreamStatus))
		return
	}
	respondJSON(w, withSuccess(res.Fields), http.StatusOK)
}

type agentRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Text == "" {
		respondError(w, "session_id and text are required", http.StatusBadRequest)
		return
	}

	res := s.service.Agent(context.WithoutCancel(r.Context()), req.SessionID, req.Text)
	if res.Failed() {
		respondJSON(w, map[string]any{"error": res.Fields["error"]}, upstreamStatus(res.UpstreamStatus))
		return
	}
	respondJSON(w, withSuccess(res.Fields), http.StatusOK)
}

// upstreamStatus is the status a failed passthrough answers with: the
// service's own error status, or 502 when it gave none.
func upstreamStatus(code int) int {
	if code >= 400 && code <= 599 {
		return code
	}
	return http.StatusBadGateway
}

// withSuccess returns fields with success set to true unless the service
// already set it.
func withSuccess(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	b, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		b, _ = json.Marshal(map[string]string{"detail": fmt.Sprintf("Processing error: %v", err)})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(b, '\n'))
}

func respondDetail(w http.ResponseWriter, detail string, status int) {
	respondJSON(w, map[string]string{"detail": detail}, status)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

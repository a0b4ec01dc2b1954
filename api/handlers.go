package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"codalyzer-backend/analysis"
	"codalyzer-backend/middleware/admission"
	"codalyzer-backend/middleware/admission/application"

	"go.uber.org/zap"
)

// Handlers agrupa as dependências dos endpoints públicos.
type Handlers struct {
	Provider   analysis.Provider
	Controller *application.Controller
	Shares     *ShareStore

	// PingStore verifica a conectividade do counter store (health check).
	// Nulo quando a limitação não está configurada.
	PingStore func(ctx context.Context) error

	MaxCodeLength int
	AllowedExts   map[string]bool
	Version       string
	Log           *zap.Logger
}

func (h *Handlers) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Analyze é o handler protegido pelo controle de admissão. O mapeamento de
// erro para status é parte do contrato com o middleware: só >=500 estorna.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	if err := analysis.ValidateCode(req.Code, h.MaxCodeLength); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_code", "Invalid code content")
		return
	}

	result, err := h.Provider.Analyze(r.Context(), analysis.Request{
		Code:     req.Code,
		Filename: analysis.SanitizeFilename(req.Filename, h.AllowedExts),
		Language: analysis.NormalizeLanguage(req.Language),
	})
	if err != nil {
		h.writeAnalyzeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success: true,
		Result:  result,
		Model:   h.Provider.Model(),
	})
}

func (h *Handlers) writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_code", "Invalid code content")
	case errors.Is(err, analysis.ErrTimeout):
		h.logger().Error("analysis timed out", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "analysis_timeout",
			"Analysis timed out - code may be too complex")
	case errors.Is(err, analysis.ErrUnavailable):
		h.logger().Error("analysis provider unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable",
			"Analysis provider unavailable")
	case errors.Is(err, analysis.ErrBadModelOutput):
		h.logger().Error("model output rejected", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "invalid_analysis",
			"Failed to parse analysis result")
	default:
		h.logger().Error("analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis_failed", "Analysis failed")
	}
}

// Initialize devolve o snapshot consultivo de quota do cliente. Degrada para
// zeros em falha do store em vez de errar: o endpoint é informativo.
func (h *Handlers) Initialize(w http.ResponseWriter, r *http.Request) {
	st := h.Controller.Status(r.Context(), admission.DefaultClientID(r))

	writeJSON(w, http.StatusOK, InitializeResponse{
		Success:                 true,
		UserRequestsRemaining:   st.ClientRemaining,
		UserRequestsLimit:       st.ClientLimit,
		GlobalRequestsRemaining: st.GlobalRemaining,
		GlobalRequestsLimit:     st.GlobalLimit,
		ResetAt:                 st.ResetAt.UTC().Format(time.RFC3339),
	})
}

// Health verifica as dependências de verdade (ping no store com prazo curto)
// em vez de só responder "ok".
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	var issues []string

	if h.Provider == nil || !h.Provider.Available() {
		status = "degraded"
		issues = append(issues, "provider_unavailable")
	}

	if h.PingStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		err := h.PingStore(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			issues = append(issues, "store_unreachable")
		}
	}

	model := ""
	if h.Provider != nil {
		model = h.Provider.Model()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   h.Version,
		Model:     model,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Issues:    issues,
	})
}

func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	status := "unavailable"
	if h.Provider != nil && h.Provider.Available() {
		status = "ok"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "Codalyzer API",
		"version": h.Version,
		"status":  status,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/dexsim/internal/engine"
)

// ReportProvider exposes the most recent batch report. The engine produces
// exactly one report per run; the provider returns nil until it exists.
type ReportProvider interface {
	Report() *engine.Report
}

// ReportHandler handles HTTP requests for batch report data.
type ReportHandler struct {
	provider ReportProvider
	logger   *zap.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(provider ReportProvider, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		provider: provider,
		logger:   logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleReport handles GET /api/report requests.
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.provider.Report()
	if report == nil {
		h.writeError(w, "report not available yet", http.StatusNotFound)
		return
	}

	h.logger.Debug("report-request-received",
		zap.Uint64("block", report.Block),
		zap.Int("outcome-count", report.Total()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(report)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *ReportHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}

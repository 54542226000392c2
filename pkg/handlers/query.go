package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/auth"
	"github.com/13102180531/ExcelQuery/pkg/logging"
	"github.com/13102180531/ExcelQuery/pkg/services"
)

// QueryHandler handles query execution and result download endpoints.
type QueryHandler struct {
	queryService services.QueryService
	middleware   *auth.Middleware
	logger       *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queryService services.QueryService, middleware *auth.Middleware, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		middleware:   middleware,
		logger:       logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.middleware.RequireAuth(h.Execute))
	mux.HandleFunc("POST /api/download", h.middleware.RequireAuth(h.Download))
	mux.HandleFunc("GET /api/results/{rid}/download", h.middleware.RequireAuth(h.DownloadCached))
}

// Execute handles POST /api/query requests.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.queryService.Execute(r.Context(), req)
	if err != nil {
		h.fail(w, "Query failed", req.Query, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// Download handles POST /api/download requests: the same pipeline as
// Execute, but the response is the workbook itself.
func (h *QueryHandler) Download(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	download, err := h.queryService.Download(r.Context(), req)
	if err != nil {
		h.fail(w, "Download failed", req.Query, err)
		return
	}

	writeDownload(w, download)
}

// DownloadCached handles GET /api/results/{rid}/download requests.
func (h *QueryHandler) DownloadCached(w http.ResponseWriter, r *http.Request) {
	resultID := r.PathValue("rid")
	download, err := h.queryService.DownloadCached(r.Context(), resultID)
	if err != nil {
		h.fail(w, "Cached download failed", resultID, err)
		return
	}

	writeDownload(w, download)
}

func (h *QueryHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (services.QueryRequest, bool) {
	var req services.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON")
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" && req.Filters == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "query is required")
		return req, false
	}
	return req, true
}

func (h *QueryHandler) fail(w http.ResponseWriter, message, query string, err error) {
	status, code := StatusFromError(err)
	h.logger.Error(message,
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("status", status),
		zap.String("error", logging.SanitizeError(err)))
	_ = ErrorResponse(w, status, code, message)
}

func writeDownload(w http.ResponseWriter, d *services.Download) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Content)
}

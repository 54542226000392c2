package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/auth"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/models"
	"github.com/13102180531/ExcelQuery/pkg/services"
)

// UploadResponse reports the per-file outcome of one upload batch.
type UploadResponse struct {
	Uploaded int                    `json:"uploaded"`
	Failed   int                    `json:"failed"`
	Files    []models.UploadOutcome `json:"files"`
}

// FilesHandler handles spreadsheet upload and listing endpoints.
type FilesHandler struct {
	storage     config.StorageConfig
	fileService services.FileService
	middleware  *auth.Middleware
	logger      *zap.Logger
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(storage config.StorageConfig, fileService services.FileService, middleware *auth.Middleware, logger *zap.Logger) *FilesHandler {
	return &FilesHandler{
		storage:     storage,
		fileService: fileService,
		middleware:  middleware,
		logger:      logger,
	}
}

// RegisterRoutes registers the files handler's routes on the given mux.
func (h *FilesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/files", h.middleware.RequireAuth(h.Upload))
	mux.HandleFunc("GET /api/files", h.middleware.RequireAuth(h.List))
}

// Upload handles POST /api/files requests. The body is multipart form data
// with one or more parts named "files". One rejected file never fails the
// batch; each part gets its own outcome entry.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.storage.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.storage.MaxUploadBytes); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request must be multipart form data within the size limit")
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", `No parts named "files" in upload`)
		return
	}

	username := auth.Username(r.Context())
	resp := UploadResponse{Files: make([]models.UploadOutcome, 0, len(parts))}
	for _, part := range parts {
		outcome := models.UploadOutcome{OriginalName: part.Filename}

		src, err := part.Open()
		if err != nil {
			outcome.Error = err.Error()
			resp.Failed++
			resp.Files = append(resp.Files, outcome)
			continue
		}

		record, err := h.fileService.Save(r.Context(), part.Filename, src, username)
		_ = src.Close()
		if err != nil {
			h.logger.Warn("Upload rejected",
				zap.String("original_name", part.Filename),
				zap.Error(err))
			outcome.Error = err.Error()
			resp.Failed++
		} else {
			outcome.Saved = true
			outcome.File = record
			resp.Uploaded++
		}
		resp.Files = append(resp.Files, outcome)
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}

// List handles GET /api/files requests.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	files := h.fileService.List(r.Context())
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"count": len(files),
	})
}

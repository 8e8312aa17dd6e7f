package handlers

import (
	"errors"
	"net/http"

	"chatrelay/internal/core/services"
	"chatrelay/pkg/logging"
	"chatrelay/pkg/middleware"
)

type UploadHandler struct {
	uploads  *services.UploadService
	maxBytes int64
}

func NewUploadHandler(uploads *services.UploadService, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	up, err := h.uploads.Store(r.Context(), header.Filename, file)
	if err != nil {
		middleware.LoggerFrom(r.Context()).ErrorContext(r.Context(), "upload handler - store failed",
			"filename", header.Filename, logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	writeJSON(w, http.StatusOK, up)
}

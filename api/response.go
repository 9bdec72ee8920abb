package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// Fixed client-facing messages. Rejections never echo internal error
// text; each class maps to one stable string.
const (
	msgNoFile         = "No file provided"
	msgNoFilename     = "No file selected"
	msgInvalidPath    = "Invalid file path"
	msgFileTooLarge   = "File size exceeds maximum allowed size"
	msgUnverifiedType = "Could not verify file type"
	msgMIMENotAllowed = "MIME type not allowed"
	msgExtMismatch    = "File extension does not match detected MIME type"
	msgScanFailed     = "File failed security scan"
	msgUploadInternal = "Upload failed. Please try again."
	msgAccessDenied   = "Access denied"
	msgFileNotFound   = "File not found"
	msgServeInternal  = "Failed to retrieve file"
)

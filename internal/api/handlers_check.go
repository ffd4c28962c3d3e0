package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/prosecheck/internal/parser"
	"github.com/dgallion1/prosecheck/internal/pipeline"
)

// checkRequest is the JSON form of POST /api/check.
type checkRequest struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// handleCheck runs a check cycle for one document revision. The body is
// either a checkRequest or a multipart form with a "file" part and an
// optional "doc_id" field.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	// Limit total request size; extra 1MB for JSON escaping or form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxDocumentBytes+1024*1024)

	req, status, err := s.readCheckRequest(r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	req.Filename = sanitizeFilename(req.Filename)
	if !parser.IsSupportedExtension(req.Filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(req.Filename)), http.StatusBadRequest)
		return
	}
	if int64(len(req.Text)) > s.cfg.MaxDocumentBytes {
		jsonError(w, fmt.Sprintf("document exceeds max size (%d bytes)", s.cfg.MaxDocumentBytes), http.StatusRequestEntityTooLarge)
		return
	}

	res, err := s.sessions.Check(r.Context(), req.DocID, req.Filename, []byte(req.Text))
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrSuperseded):
			jsonError(w, err.Error(), http.StatusConflict)
		case r.Context().Err() != nil:
			s.log.Info("client went away during check", "doc", req.DocID)
		default:
			s.log.Error("check failed", "doc", req.DocID, "error", err)
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *Server) readCheckRequest(r *http.Request) (checkRequest, int, error) {
	var req checkRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxDocumentBytes+1))
		if err != nil {
			return req, http.StatusInternalServerError, fmt.Errorf("failed to read file")
		}
		req.DocID = r.FormValue("doc_id")
		req.Filename = header.Filename
		req.Text = string(data)
		return req, 0, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large")
		}
		return req, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req.Filename == "" {
		return req, http.StatusBadRequest, fmt.Errorf("filename is required")
	}
	return req, 0, nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}

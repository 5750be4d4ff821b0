// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aegis-hr/aegis/internal/ingest"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// multipartSlack is the allowance for multipart framing on top of the file
// size limit.
const multipartSlack = 64 << 10

const uploadField = "file"

// UploadResponse is the body returned by POST /upload.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

func (s *Server) registerUploadRoute() {
	s.router.Post("/upload", s.handleUpload)

	// The handler reads the multipart body itself to cap its size, so the
	// route lives on chi and is only described to huma.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "upload-document",
		Method:      http.MethodPost,
		Path:        "/upload",
		Summary:     "Upload a resume (PDF) for indexing",
		Tags:        []string{"documents"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"multipart/form-data": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{uploadField},
						Properties: map[string]*huma.Schema{
							uploadField: {
								Type:        "string",
								Format:      "binary",
								Description: fmt.Sprintf("PDF file, at most %d bytes", s.cfg.MaxUploadBytes),
							},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Document indexed",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"message":  {Type: "string"},
								"filename": {Type: "string"},
							},
						},
					},
				},
			},
			"400": {Description: "Not a PDF, or the request is malformed"},
			"409": {Description: "Document already indexed and duplicates are rejected"},
			"413": {Description: "File exceeds the upload limit"},
			"500": {Description: "Processing failed"},
			"503": {Description: "Ingestion not initialized"},
		},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	docs := s.svc().Documents
	if docs == nil {
		writeProblem(w, http.StatusServiceUnavailable, msgIngestNotReady)
		return
	}

	limit := s.cfg.MaxUploadBytes
	tooLarge := fmt.Sprintf("File is too large. The limit is %d bytes.", limit)
	if r.ContentLength > limit+multipartSlack {
		writeProblem(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	filename, raw, err := readUploadFile(r, limit)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), aegiserr.HasCode(err, aegiserr.CodeUploadTooLarge):
		writeProblem(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	case err != nil:
		writeProblem(w, http.StatusBadRequest, publicMessage(err))
		return
	}

	if ingest.KindOf(filename) != ingest.KindPDF {
		writeProblem(w, http.StatusBadRequest, "Invalid file type. Only PDF files are accepted.")
		return
	}

	report, err := docs.AddDocument(r.Context(), raw, filename)
	if err != nil {
		status := aegiserr.HTTPStatus(err)
		attrs := []any{"filename", filename, "kind", aegiserr.Kind(err), "code", aegiserr.CodeOf(err), "error", err}
		switch status {
		case http.StatusBadRequest, http.StatusConflict, http.StatusRequestEntityTooLarge:
			s.logger.Info("upload rejected", attrs...)
			writeProblem(w, status, publicMessage(err))
		default:
			s.logger.Error("upload failed", attrs...)
			writeProblem(w, http.StatusInternalServerError, "Failed to process file: "+publicMessage(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:  fmt.Sprintf("Successfully processed '%s' (%d chunks).", report.Source, report.Chunks),
		Filename: report.Source,
	})
}

// readUploadFile streams the multipart body and returns the first "file"
// part. Parts larger than limit fail with CodeUploadTooLarge before they are
// fully buffered.
func readUploadFile(r *http.Request, limit int64) (string, []byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return "", nil, aegiserr.New(aegiserr.CodeServerRequestInvalid, "Expected a multipart/form-data upload.")
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, aegiserr.Wrap(err, aegiserr.CodeServerRequestInvalid, "Malformed multipart body.")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, aegiserr.New(aegiserr.CodeServerRequestInvalid, "Missing file field.")
		}
		if err != nil {
			return "", nil, passMaxBytes(err, "Malformed multipart body.")
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		return readPart(part, limit)
	}
}

func readPart(part *multipart.Part, limit int64) (string, []byte, error) {
	defer func() { _ = part.Close() }()

	filename := filepath.Base(strings.ReplaceAll(part.FileName(), `\`, "/"))
	if filename == "" || filename == "." || filename == "/" {
		return "", nil, aegiserr.New(aegiserr.CodeServerRequestInvalid, "Upload has no file name.")
	}

	raw, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return "", nil, passMaxBytes(err, "Could not read the uploaded file.")
	}
	if int64(len(raw)) > limit {
		return "", nil, aegiserr.Errorf(aegiserr.CodeUploadTooLarge, "file exceeds %d bytes", limit)
	}
	return filename, raw, nil
}

// passMaxBytes keeps *http.MaxBytesError visible to errors.As.
func passMaxBytes(err error, msg string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return aegiserr.Wrap(err, aegiserr.CodeServerRequestInvalid, msg)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

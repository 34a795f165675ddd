package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/quarterly-extractor/internal/api/middleware"
	"github.com/dvloznov/quarterly-extractor/internal/extract"
	"github.com/dvloznov/quarterly-extractor/internal/logger"
	"github.com/dvloznov/quarterly-extractor/internal/pipeline"
	"github.com/dvloznov/quarterly-extractor/internal/preprocess"
	"github.com/dvloznov/quarterly-extractor/internal/storage"
)

// MaxUploadBytes bounds multipart uploads held in memory.
const MaxUploadBytes = 32 << 20

var errNoDocument = errors.New("a PDF must be sent as 'file' or referenced by 'gcs_uri'")

// ExtractionService is what the handlers need from pipeline.Service.
type ExtractionService interface {
	Extract(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Scan(ctx context.Context, doc extract.Document) (*pipeline.ScanResult, error)
	Query(ctx context.Context, doc extract.Document, question string) (*pipeline.QueryResult, error)
}

// DocumentLoader resolves a gs:// reference to a document.
type DocumentLoader interface {
	Load(ctx context.Context, source string) (extract.Document, error)
}

// ExtractionHandler handles the extraction endpoints.
type ExtractionHandler struct {
	svc    ExtractionService
	loader DocumentLoader
	log    zerolog.Logger
}

// NewExtractionHandler creates a new extraction handler. loader may be nil,
// in which case only uploaded files are accepted.
func NewExtractionHandler(svc ExtractionService, loader DocumentLoader, log zerolog.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		svc:    svc,
		loader: loader,
		log:    logger.Component(log, "handlers"),
	}
}

// Extract handles POST /api/extract
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	doc, ok := readDocument(w, r, h.loader)
	if !ok {
		return
	}

	res, err := h.svc.Extract(r.Context(), pipeline.Request{
		Document: doc,
		Quarter:  r.FormValue("quarter"),
		Year:     r.FormValue("year"),
		Terms:    preprocess.ParseTermList(r.FormValue("terms")),
		Mode:     r.FormValue("mode"),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Extraction failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// Scan handles POST /api/scan
func (h *ExtractionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	doc, ok := readDocument(w, r, h.loader)
	if !ok {
		return
	}

	res, err := h.svc.Scan(r.Context(), doc)
	if err != nil {
		h.writeServiceError(w, r, err, "Scan failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// Query handles POST /api/query
func (h *ExtractionHandler) Query(w http.ResponseWriter, r *http.Request) {
	doc, ok := readDocument(w, r, h.loader)
	if !ok {
		return
	}

	res, err := h.svc.Query(r.Context(), doc, r.FormValue("q"))
	if err != nil {
		h.writeServiceError(w, r, err, "Query failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// readDocument takes the document from the multipart "file" field or loads
// the object named by "gcs_uri" through loader. It writes the error response
// itself.
func readDocument(w http.ResponseWriter, r *http.Request, loader DocumentLoader) (extract.Document, bool) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return extract.Document{}, false
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return extract.Document{}, false
		}
		return extract.Document{
			Name:     filepath.Base(header.Filename),
			MIMEType: header.Header.Get("Content-Type"),
			Data:     data,
		}, true

	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid file field")
		return extract.Document{}, false
	}

	uri := strings.TrimSpace(r.FormValue("gcs_uri"))
	if uri == "" {
		middleware.WriteError(w, http.StatusBadRequest, errNoDocument.Error())
		return extract.Document{}, false
	}
	if _, _, err := storage.ParseURI(uri); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return extract.Document{}, false
	}
	if loader == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "GCS access is not configured")
		return extract.Document{}, false
	}

	doc, err := loader.Load(r.Context(), uri)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("gcs_uri", uri).Msg("Failed to load document")
		middleware.WriteError(w, http.StatusBadGateway, fmt.Sprintf("Failed to load %s", uri))
		return extract.Document{}, false
	}
	return doc, true
}

func (h *ExtractionHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, preprocess.ErrInvalidQuarter),
		errors.Is(err, preprocess.ErrInvalidYear),
		errors.Is(err, preprocess.ErrEmptyQuery),
		errors.Is(err, pipeline.ErrInvalidMode):
		middleware.WriteError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusGatewayTimeout, "Request cancelled or timed out")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// validationMessage drops the operation prefixes from a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{preprocess.ErrInvalidQuarter, preprocess.ErrInvalidYear, preprocess.ErrEmptyQuery, pipeline.ErrInvalidMode} {
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
	}
	return msg
}

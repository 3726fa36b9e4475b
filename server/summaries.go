package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sevigo/docsum/chains"
	"github.com/sevigo/docsum/documentloaders"
	"github.com/sevigo/docsum/parsers"
	"github.com/sevigo/docsum/schema"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

var errBadRequest = errors.New("bad request")

// SummaryResponse is the JSON body returned by POST /api/summaries.
type SummaryResponse struct {
	RequestID  string  `json:"request_id"`
	FileName   string  `json:"file_name"`
	SizeKB     float64 `json:"size_kb"`
	MediaType  string  `json:"media_type"`
	Summary    string  `json:"summary"`
	Status     string  `json:"status"`
	Chunks     int     `json:"chunks"`
	Summarized int     `json:"summarized"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	Collapsed  int     `json:"collapsed"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)
	logger := s.logger.With("request_id", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		logger.DebugContext(ctx, "Rejected upload", "error", err)
		writeError(w, r, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	maxLength, minLength, err := s.parseLengths(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing form field \"file\"")
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	logger.InfoContext(ctx, "Summary requested",
		"file_name", fileName,
		"size_bytes", header.Size,
		"max_length", maxLength,
		"min_length", minLength)

	doc, err := documentloaders.LoadReader(ctx, file, fileName, header.Header.Get("Content-Type"), s.registry,
		documentloaders.WithLogger(logger),
		documentloaders.WithMetrics(s.opts.metrics))
	switch {
	case errors.Is(err, parsers.ErrUnsupportedType):
		writeError(w, r, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, parsers.ErrExtractionFailed):
		writeError(w, r, http.StatusUnprocessableEntity, "failed to extract text from the document")
		return
	case err != nil:
		logger.ErrorContext(ctx, "Loading upload failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()
	res := s.summarizer.WithLengths(maxLength, minLength).Run(runCtx, doc.PageContent)

	if strings.EqualFold(r.FormValue("format"), "text") {
		disposition := mime.FormatMediaType("attachment", map[string]string{
			"filename": fileName + "_summary.txt",
		})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", disposition)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(res.Summary))
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		RequestID:  requestID,
		FileName:   fileName,
		SizeKB:     math.Round(float64(header.Size)/1024*100) / 100,
		MediaType:  doc.MetadataString(schema.MetadataMediaType),
		Summary:    res.Summary,
		Status:     string(res.Status),
		Chunks:     res.Chunks,
		Summarized: res.Summarized,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		Collapsed:  res.Collapses,
	})
}

// parseLengths reads max_length and min_length. Omitted fields take the
// server defaults; supplied ones must pass chains.ValidateLengths.
func (s *Server) parseLengths(r *http.Request) (int, int, error) {
	maxLength, maxSet, err := formInt(r, "max_length", s.opts.maxLength)
	if err != nil {
		return 0, 0, err
	}
	minLength, minSet, err := formInt(r, "min_length", s.opts.minLength)
	if err != nil {
		return 0, 0, err
	}
	if maxSet || minSet {
		if err := chains.ValidateLengths(maxLength, minLength); err != nil {
			return 0, 0, err
		}
	}
	return maxLength, minLength, nil
}

func formInt(r *http.Request, key string, def int) (int, bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return def, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return v, true, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, RequestID: RequestIDFromContext(r.Context())})
}

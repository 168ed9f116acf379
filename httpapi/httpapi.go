// CLAUDE:SUMMARY chi HTTP surface: upload, job control, download, preview and the SSE event feed.
// Package httpapi exposes the workbench over HTTP.
//
// Routes:
//
//	POST   /api/files              multipart upload (field "file", repeatable)
//	GET    /api/jobs               list jobs
//	POST   /api/jobs/{id}/translate start processing, optional {"start","end"}
//	GET    /api/jobs/{id}/download  reassembled document
//	GET    /api/jobs/{id}/preview   sanitized viewer HTML
//	GET    /api/jobs/{id}/preview.md markdown export of the preview
//	DELETE /api/jobs/{id}          delete one job
//	DELETE /api/jobs               delete all jobs
//	GET    /api/events             SSE event feed with Last-Event-ID replay
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/tradbench/docpipe"
	"github.com/hazyhaar/tradbench/workbench"
)

// Config configures the HTTP server.
type Config struct {
	// MaxUploadBytes bounds one multipart upload. Default: 110 MB, slightly
	// above the pipeline's own file-size cap so the pipeline error wins.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// Logger overrides slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 110 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server handles the workbench HTTP API.
type Server struct {
	wb       *workbench.Workbench
	cfg      Config
	logger   *slog.Logger
	sanitize *bluemonday.Policy
}

// NewServer creates a Server around a Workbench.
func NewServer(wb *workbench.Workbench, cfg Config) *Server {
	cfg.defaults()

	// Viewer HTML keeps its segment anchors and page markers through
	// sanitization.
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("data-seg", "data-page", "class").Globally()

	return &Server{wb: wb, cfg: cfg, logger: cfg.Logger, sanitize: policy}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/files", s.handleUpload)
		r.Get("/events", s.handleEvents)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Delete("/", s.handleClearJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteJob)
				r.Post("/translate", s.handleTranslate)
				r.Get("/download", s.handleDownload)
				r.Get("/preview", s.handlePreview)
				r.Get("/preview.md", s.handlePreviewMarkdown)
			})
		})
	})
	return r
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	sourceLang := r.FormValue("source_lang")
	targetLang := r.FormValue("target_lang")
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no file part in upload"))
		return
	}

	type result struct {
		Job   *workbench.Job `json:"job,omitempty"`
		Name  string         `json:"name"`
		Error string         `json:"error,omitempty"`
	}
	results := make([]result, 0, len(files))

	// One bad file never aborts its siblings.
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			results = append(results, result{Name: fh.Filename, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			results = append(results, result{Name: fh.Filename, Error: err.Error()})
			continue
		}

		job, err := s.wb.Upload(r.Context(), fh.Filename, data, sourceLang, targetLang)
		if err != nil {
			s.logger.Warn("httpapi: upload rejected", "name", fh.Filename, "error", err)
			results = append(results, result{Name: fh.Filename, Error: err.Error()})
			continue
		}
		results = append(results, result{Name: fh.Filename, Job: job})
	}

	writeJSON(w, http.StatusCreated, map[string]any{"files": results})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.wb.Jobs()})
}

type translateRequest struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req translateRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
	}
	var pages *docpipe.PageRange
	if req.Start != 0 || req.End != 0 {
		pages = &docpipe.PageRange{Start: req.Start, End: req.End}
	}

	err := s.wb.StartProcessing(r.Context(), id, pages)
	switch {
	case errors.Is(err, workbench.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, workbench.ErrNotIdle):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, mime, filename, err := s.wb.Download(id)
	switch {
	case errors.Is(err, workbench.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.logger.Error("httpapi: download failed", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	job, ok := s.wb.Job(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, workbench.ErrJobNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, s.sanitize.Sanitize(job.HTMLContent))
}

func (s *Server) handlePreviewMarkdown(w http.ResponseWriter, r *http.Request) {
	job, ok := s.wb.Job(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, workbench.ErrJobNotFound)
		return
	}
	md, err := htmltomarkdown.ConvertString(s.sanitize.Sanitize(job.HTMLContent))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("convert to markdown: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, md)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.wb.DeleteJob(r.Context(), id)
	switch {
	case errors.Is(err, workbench.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

func (s *Server) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	n := s.wb.ClearJobs(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

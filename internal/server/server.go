// Package server exposes the analysis engine over HTTP: upload a table,
// receive the JSON report.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/KaramelBytes/hourlens/internal/analysis"
	"github.com/KaramelBytes/hourlens/internal/config"
	"github.com/KaramelBytes/hourlens/internal/table"
)

// Settings are the per-server defaults every request starts from.
type Settings struct {
	// Request is copied for each upload; Table is filled in by the handler.
	Request        analysis.Request
	Read           table.ReadOptions
	MaxUploadBytes int64
}

// Server routes HTTP requests to the engine.
type Server struct {
	router   *chi.Mux
	engine   *analysis.Engine
	log      *zap.Logger
	settings Settings
}

// New builds a server with its routes and middleware.
func New(engine *analysis.Engine, log *zap.Logger, settings Settings) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if settings.MaxUploadBytes <= 0 {
		settings.MaxUploadBytes = 32 << 20
	}
	s := &Server{router: chi.NewRouter(), engine: engine, log: log, settings: settings}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/analyze", s.handleAnalyze)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze accepts a multipart upload (field "file") or a raw body
// named by the "filename" query parameter. Query parameters override the
// server defaults: target, group_by, time_column, metric (repeatable),
// top_n, missing_strategy, outlier_strategy, iqr_k, agg_func, window
// (repeatable), ratio (repeatable), encoding, delimiter, sheet.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxUploadBytes)

	body, filename, closeFn, err := uploadedFile(r, s.settings.MaxUploadBytes)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer closeFn()

	req, readOpt, err := s.requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tb, err := table.Read(body, filename, readOpt)
	if err != nil {
		writeError(w, statusFor(err), fmt.Errorf("read %s: %w", filename, err))
		return
	}
	req.Table = tb

	rep, err := s.engine.Analyze(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func uploadedFile(r *http.Request, maxBytes int64) (io.Reader, string, func(), error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, "", nil, fmt.Errorf("parse upload: %w", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, "", nil, fmt.Errorf("missing form field 'file': %w", err)
		}
		return f, hdr.Filename, func() { _ = f.Close() }, nil
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.csv"
	}
	return r.Body, name, func() {}, nil
}

func (s *Server) requestFromQuery(r *http.Request) (analysis.Request, table.ReadOptions, error) {
	q := r.URL.Query()
	req := s.settings.Request
	opt := s.settings.Read

	if v := q.Get("target"); v != "" {
		req.Target = v
	}
	if v := q.Get("group_by"); v != "" {
		req.GroupBy = v
	}
	if v := q.Get("time_column"); v != "" {
		req.TimeColumn = v
	}
	if vs := q["metric"]; len(vs) > 0 {
		req.Metrics = vs
	}
	if v := q.Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, opt, fmt.Errorf("invalid top_n: %s", v)
		}
		req.TopN = n
	}
	if v := q.Get("missing_strategy"); v != "" {
		m, err := analysis.ParseMissingStrategy(v)
		if err != nil {
			return req, opt, err
		}
		req.Policy.Missing = m
	}
	if v := q.Get("outlier_strategy"); v != "" {
		o, err := analysis.ParseOutlierStrategy(v)
		if err != nil {
			return req, opt, err
		}
		req.Policy.Outliers = o
	}
	if v := q.Get("iqr_k"); v != "" {
		k, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, opt, fmt.Errorf("invalid iqr_k: %s", v)
		}
		req.Policy.IQRFactor = k
	}
	if v := q.Get("agg_func"); v != "" {
		a, err := analysis.ParseAggFunc(v)
		if err != nil {
			return req, opt, err
		}
		req.Agg = a
	}
	if vs := q["window"]; len(vs) > 0 {
		ws, err := analysis.ParseWindows(vs)
		if err != nil {
			return req, opt, err
		}
		req.Windows = ws
	}
	if vs := q["ratio"]; len(vs) > 0 {
		rs, err := analysis.ParseRatios(vs)
		if err != nil {
			return req, opt, err
		}
		req.Ratios = rs
	}
	if v := q.Get("encoding"); v != "" {
		opt.Encoding = v
	}
	if v := q.Get("delimiter"); v != "" {
		d, err := config.ParseDelimiter(v)
		if err != nil {
			return req, opt, err
		}
		opt.Delimiter = d
	}
	if v := q.Get("sheet"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opt.SheetName, opt.SheetIndex = "", n
		} else {
			opt.SheetName = v
		}
	}
	return req, opt, nil
}

func statusFor(err error) int {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, table.ErrUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

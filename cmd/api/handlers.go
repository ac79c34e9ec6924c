package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"

	"github.com/WessleyAI/polidossier/engine/domain"
	"github.com/WessleyAI/polidossier/engine/dossier"
	"github.com/WessleyAI/polidossier/pkg/fn"
	"github.com/WessleyAI/polidossier/pkg/metrics"
	"github.com/WessleyAI/polidossier/pkg/mid"
	"github.com/WessleyAI/polidossier/pkg/resilience"
)

// User-facing messages.
const (
	msgMissingParams  = "Please provide at least one search parameter."
	msgInvalidBody    = "Invalid request body."
	msgNotFound       = "Politician not found. Please search again."
	msgSearchFailed   = "An error occurred while processing your request."
	msgDetailsFailed  = "An error occurred while fetching politician details."
	msgUnknownAPIPath = "Not found."
)

const maxBodyBytes = 1 << 20

// Service is what the handlers need from the dossier service.
type Service interface {
	Search(ctx context.Context, q domain.SearchQuery) fn.Result[dossier.Outcome]
	Refine(ctx context.Context, q domain.SearchQuery) fn.Result[dossier.Outcome]
	Details(ctx context.Context, id string) fn.Result[domain.Politician]
}

// newHandler wires routes and middleware. Static assets, health and metrics
// bypass the rate limiter; every API route and the SPA shell go through it.
func newHandler(svc Service, limiter *resilience.KeyedLimiter, m *metrics.Metrics, cfg Config, logger *slog.Logger) http.Handler {
	app := http.NewServeMux()
	app.HandleFunc("POST /api/search-politician", handleSearch(svc.Search, logger))
	app.HandleFunc("POST /api/refine-search", handleSearch(svc.Refine, logger))
	app.HandleFunc("GET /api/politician-details/{id}", handleDetails(svc, logger))
	app.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		mid.WriteError(w, http.StatusNotFound, msgUnknownAPIPath)
	})
	app.Handle("/", handleIndex(cfg.StaticDir))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", m.Handler())
	static := http.FileServer(http.Dir(cfg.StaticDir))
	for _, prefix := range []string{"/css/", "/js/", "/images/"} {
		mux.Handle("GET "+prefix, static)
	}
	mux.Handle("/", mid.RateLimit(limiter, cfg.TrustProxy, m, logger)(app))

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.Metrics(m),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("polidossier-api"),
	)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type politicianResponse struct {
	Success    bool               `json:"success"`
	Politician *domain.Politician `json:"politician,omitempty"`
	Message    string             `json:"message,omitempty"`
}

type searchFunc func(context.Context, domain.SearchQuery) fn.Result[dossier.Outcome]

// handleSearch serves both search and refine; they differ only in the prompt.
func handleSearch(search searchFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q domain.SearchQuery
		if err := decodeBody(w, r, &q); err != nil {
			mid.WriteError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		out, err := search(r.Context(), q).Unwrap()
		if err != nil {
			writeFailure(w, r, logger, err, msgSearchFailed)
			return
		}
		if !out.Found {
			writeJSON(w, http.StatusOK, politicianResponse{Success: false, Message: out.Message})
			return
		}
		writeJSON(w, http.StatusOK, politicianResponse{Success: true, Politician: &out.Politician})
	}
}

func handleDetails(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Details(r.Context(), r.PathValue("id")).Unwrap()
		if err != nil {
			writeFailure(w, r, logger, err, msgDetailsFailed)
			return
		}
		writeJSON(w, http.StatusOK, politicianResponse{Success: true, Politician: &p})
	}
}

// handleIndex serves files that exist under staticDir and falls back to the
// SPA shell for every other path.
func handleIndex(staticDir string) http.Handler {
	root := http.Dir(staticDir)
	files := http.FileServer(root)
	index := filepath.Join(staticDir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" && isFile(root, r.URL.Path) {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

func isFile(root http.FileSystem, name string) bool {
	f, err := root.Open(path.Clean("/" + name))
	if err != nil {
		return false
	}
	defer f.Close()
	st, err := f.Stat()
	return err == nil && !st.IsDir()
}

// --- Helpers ---

// decodeBody reads a JSON object. An empty body decodes as an empty query.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeFailure maps the error kind to a status code. Clients only ever see
// the generic message; the detail goes to the log.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, generic string) {
	status, msg := http.StatusInternalServerError, generic
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, msg = http.StatusBadRequest, msgMissingParams
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, msgNotFound
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelInfo
	}
	logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"status", status,
		"err", err,
		"request_id", mid.RequestIDFrom(r.Context()),
	)
	mid.WriteError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

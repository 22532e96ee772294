// Package web exposes the resolve pipeline over HTTP.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"icsday/internal/app"
	"icsday/internal/config"
	"icsday/internal/daykey"
	appLog "icsday/internal/log"
	"icsday/internal/model"
)

// responseCacheTTL bounds how stale a cached /api/occurrences answer may be.
const responseCacheTTL = 30 * time.Second

// Server provides the HTTP API for occurrence queries.
type Server struct {
	cfg    *config.Config
	app    *app.App
	router chi.Router

	// responses caches /api/occurrences payloads keyed by normalized query,
	// so a busy client doesn't re-run fetch/adapt/resolve every request.
	responses *gocache.Cache
}

// NewServer constructs a Server around an App.
func NewServer(cfg *config.Config, a *app.App) *Server {
	s := &Server{
		cfg:       cfg,
		app:       a,
		responses: gocache.New(responseCacheTTL, 2*responseCacheTTL),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/occurrences", s.handleOccurrences)
		r.Get("/sources", s.handleSources)
	})
	return r
}

// requestIDMiddleware tags every request with a UUID and logs its outcome.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware guards every endpoint except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="icsday", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// occurrencesResponse is the results object of spec'd shape: best-effort
// occurrences plus the warnings for anything skipped or degraded.
type occurrencesResponse struct {
	Days        []string        `json:"days"`
	Timezone    string          `json:"timezone"`
	Occurrences []occurrenceDTO `json:"occurrences"`
	Warnings    []model.Warning `json:"warnings"`
}

type occurrenceDTO struct {
	Calendar    string    `json:"calendar"`
	UID         string    `json:"uid"`
	Day         string    `json:"day"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Provenance  string    `json:"provenance"`
}

// handleOccurrences answers GET /api/occurrences.
//
//	days:        comma-separated day list (default: today in the configured zone)
//	ongoing:     "1"/"true" to include multi-day continuation rows
//	transparent: "1"/"true" to include free/available events
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var dayInputs []string
	if raw := q.Get("days"); raw != "" {
		dayInputs = strings.Split(raw, ",")
	} else {
		dayInputs = []string{time.Now().In(s.app.Location()).Format(daykey.Layout)}
	}
	days, err := daykey.ParseAll(dayInputs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.app.Options()
	if v := q.Get("ongoing"); v != "" {
		opts.IncludeOngoing = parseBool(v)
	}
	if v := q.Get("transparent"); v != "" {
		opts.IncludeTransparent = parseBool(v)
	}

	cacheKey := cacheKeyFor(days, opts.IncludeOngoing, opts.IncludeTransparent)
	if cached, ok := s.responses.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached.(occurrencesResponse))
		return
	}

	result := s.app.ResolveDays(r.Context(), days, opts)

	dtos := make([]occurrenceDTO, 0, len(result.Occurrences))
	for _, occ := range result.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			Calendar:    occ.Calendar,
			UID:         occ.UID,
			Day:         occ.Day,
			Summary:     occ.Summary,
			Description: occ.Description,
			Location:    occ.Location,
			AllDay:      occ.AllDay,
			Start:       occ.Start,
			End:         occ.End,
			Provenance:  string(occ.Provenance),
		})
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []model.Warning{}
	}
	dayStrings := make([]string, 0, len(days))
	for _, d := range days {
		dayStrings = append(dayStrings, string(d))
	}

	resp := occurrencesResponse{
		Days:        dayStrings,
		Timezone:    s.app.Location().String(),
		Occurrences: dtos,
		Warnings:    warnings,
	}
	s.responses.SetDefault(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

type sourceDTO struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.app.Sources()
	dtos := make([]sourceDTO, 0, len(sources))
	for _, src := range sources {
		dtos = append(dtos, sourceDTO{ID: src.ID, Name: src.Name, URL: src.URL})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func cacheKeyFor(days []daykey.Day, ongoing, transparent bool) string {
	var b strings.Builder
	for _, d := range days {
		b.WriteString(string(d))
		b.WriteByte(',')
	}
	if ongoing {
		b.WriteString("|ongoing")
	}
	if transparent {
		b.WriteString("|transparent")
	}
	return b.String()
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

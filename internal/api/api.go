// Package api serves postcode lookups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"postcode-api/internal/logger"
	"postcode-api/internal/lookup"
	"postcode-api/internal/metrics"
	"postcode-api/internal/middleware"
	"postcode-api/internal/store"
)

const (
	minPostcodeLen = 4

	cacheForever = "max-age=31536000, immutable"
	cacheNever   = "no-store"
)

// Lookuper resolves one postcode for an area type.
type Lookuper interface {
	Lookup(ctx context.Context, areaType, outcode, incode string) (string, bool, error)
}

// Deps wires the router.
type Deps struct {
	Engine    Lookuper
	AreaTypes []string
	Stats     *store.Store
	Logger    *slog.Logger
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit int
}

type server struct {
	engine    Lookuper
	areaTypes map[string]struct{}
	docs      []byte
	stats     *store.Store
	log       *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) (http.Handler, error) {
	l := d.Logger
	if l == nil {
		l = logger.L()
	}
	docs, err := renderDocs(d.AreaTypes)
	if err != nil {
		return nil, fmt.Errorf("render docs: %w", err)
	}
	s := &server{
		engine:    d.Engine,
		areaTypes: make(map[string]struct{}, len(d.AreaTypes)),
		docs:      docs,
		stats:     d.Stats,
		log:       l,
	}
	for _, t := range d.AreaTypes {
		s.areaTypes[t] = struct{}{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.AccessMiddleware(l))
	r.Use(chimw.Recoverer)
	r.Use(middleware.RateLimit(d.RateLimit))
	r.Use(chimw.GetHead)

	r.Get("/__gtg", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not found"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/v1", http.StatusFound) })
	r.Get("/v1", s.handleDocs)
	r.Get("/v1/{areaType}", s.handleLookup)
	r.Get("/__stats", s.handleStats)
	r.Handle("/metrics", metrics.Handler())
	r.NotFound(s.handleNotFound)
	return r, nil
}

var postcodeMessages = map[error]string{
	ErrPostcodeMissing:  `Missing "postcode" parameter`,
	ErrPostcodeTooShort: `"postcode" parameter too short`,
	ErrPostcodeInvalid:  `Invalid "postcode" parameter`,
}

type lookupResponse struct {
	Status   int    `json:"status"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Postcode string `json:"postcode"`
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: status, Message: msg})
}

func (s *server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusNotFound, fmt.Sprintf("Not found: %q", r.URL.Path))
}

func (s *server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.docs)
}

func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	areaType := chi.URLParam(r, "areaType")
	if _, ok := s.areaTypes[areaType]; !ok {
		s.handleNotFound(w, r)
		return
	}
	start := time.Now()
	outcome := metrics.OutcomeBadRequest
	defer func() {
		metrics.RequestsTotal.WithLabelValues(areaType, outcome).Inc()
		metrics.RequestDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cache-Control", cacheForever)

	outcode, incode, err := ParsePostcode(r.URL.Query().Get("postcode"))
	if err != nil {
		sendError(w, http.StatusBadRequest, postcodeMessages[err])
		return
	}

	value, found, err := s.engine.Lookup(r.Context(), areaType, outcode, incode)
	if err != nil {
		outcome = metrics.OutcomeError
		s.log.Error("lookup_error", "area_type", areaType, "postcode", outcode+" "+incode, "err", err,
			"data_source_error", errors.As(err, new(*lookup.DataSourceError)),
			"request_id", chimw.GetReqID(r.Context()))
		h.Set("Cache-Control", cacheNever)
		sendError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if !found || value == "" {
		outcome = metrics.OutcomeNotFound
		sendError(w, http.StatusBadRequest, fmt.Sprintf("Postcode not known: %s %s", outcode, incode))
		return
	}

	outcome = metrics.OutcomeFound
	if s.stats.Enabled() {
		if err := s.stats.IncrStats(r.Context(), areaType, visitorIP(r)); err != nil {
			metrics.StatsFailuresTotal.Inc()
			s.log.Warn("stats_incr_error", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, lookupResponse{
		Status:   http.StatusOK,
		Type:     areaType,
		Value:    value,
		Postcode: outcode + " " + incode,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", cacheNever)
	t, err := s.stats.GetTotals(r.Context())
	if err != nil {
		s.log.Error("stats_read_error", "err", err)
		sendError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

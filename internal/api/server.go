// Package api is the HTTP surface: the token endpoint, the verification
// endpoint, and the workspace administration routes.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokengate/backend/internal/cache"
	"github.com/tokengate/backend/internal/events"
	"github.com/tokengate/backend/internal/ratelimit"
	"github.com/tokengate/backend/internal/store"
	"github.com/tokengate/backend/internal/token"
	"github.com/tokengate/backend/internal/uid"
)

// Options carries everything a Server needs. All fields are required except
// Registry, which defaults to a fresh one.
type Options struct {
	Logger    *slog.Logger
	Store     store.Store
	Codec     *token.Codec
	Cache     *cache.ClientCache
	Buckets   *ratelimit.Registry
	Publisher events.Publisher
	Registry  *prometheus.Registry

	InternalClientID    string
	InternalAPIID       string
	InternalWorkspaceID string
}

// Server routes requests to the handlers. Construct with NewServer; the zero
// value is not usable.
type Server struct {
	logger    *slog.Logger
	store     store.Store
	codec     *token.Codec
	cache     *cache.ClientCache
	buckets   *ratelimit.Registry
	publisher events.Publisher
	auth      *Authorizer
	metrics   *Metrics
	registry  *prometheus.Registry
	router    *mux.Router

	internalAPIID       string
	internalWorkspaceID string
}

func NewServer(opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		logger:              opts.Logger,
		store:               opts.Store,
		codec:               opts.Codec,
		cache:               opts.Cache,
		buckets:             opts.Buckets,
		publisher:           opts.Publisher,
		metrics:             NewMetrics(registry),
		registry:            registry,
		internalAPIID:       opts.InternalAPIID,
		internalWorkspaceID: opts.InternalWorkspaceID,
	}
	s.auth = NewAuthorizer(opts.Codec, opts.Store, opts.Cache, opts.Buckets, opts.InternalClientID)
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.HandleFunc("/oauth/token", s.handleOAuthToken).Methods(http.MethodPost)

	r.HandleFunc("/v1/internal.createWorkspace", s.handleCreateWorkspace).Methods(http.MethodPost)
	r.HandleFunc("/v1/internal.createRootClient", s.handleCreateRootClient).Methods(http.MethodPost)
	r.HandleFunc("/v1/apis.createApi", s.handleCreateApi).Methods(http.MethodPost)
	r.HandleFunc("/v1/clients.createClient", s.handleCreateClient).Methods(http.MethodPost)
	r.HandleFunc("/v1/clients.getClient", s.handleGetClient).Methods(http.MethodGet)
	r.HandleFunc("/v1/clients.rotateSecret", s.handleRotateSecret).Methods(http.MethodPost)
	r.HandleFunc("/v1/tokens.verifyToken", s.handleVerifyToken).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody parses a JSON request body. Malformed or missing bodies are a
// schema error, distinct from the 400s handlers raise for semantic problems.
func decodeBody(r *http.Request, v any) *apiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errUnprocessable(detailInvalidRequest)
	}
	return nil
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		requestID := uid.New("req")

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		duration := time.Since(start)
		s.metrics.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

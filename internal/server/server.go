// Package server exposes prepared datasets over a small JSON HTTP API: upload a source,
// then filter, aggregate, chart, report and export it with explicit parameters.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/datasift-cli/internal/loader"
	"github.com/KaramelBytes/datasift-cli/internal/logging"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
)

// Options configures a Server.
type Options struct {
	Addr string
	// RateLimit is requests per second across /api; 0 disables limiting.
	RateLimit      float64
	RateBurst      int
	MaxUploadBytes int64
	MaxSessions    int
	CacheSize      int
	Loader         loader.Options
	// Pipeline returns pipeline options for a profile name; "" selects the default.
	Pipeline  func(profile string) (pipeline.Options, error)
	ExportBOM bool
	// HistogramBins applies when a chart request names a histogram without bins.
	HistogramBins int
	// AllowPaths permits loading files from the server's filesystem by path.
	AllowPaths bool
	Logger     *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	opt      Options
	log      *slog.Logger
	store    *Store
	cache    *loader.Cache
	validate *validator.Validate
	metrics  *Metrics
	router   chi.Router
}

// New builds a server and its routes.
func New(opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = logging.Discard()
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = 32 << 20
	}
	if opt.Pipeline == nil {
		opt.Pipeline = func(string) (pipeline.Options, error) {
			return pipeline.Options{Profile: pipeline.Generic()}, nil
		}
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	s := &Server{
		opt:      opt,
		log:      opt.Logger.With(slog.String("component", "server")),
		store:    NewStore(opt.MaxSessions),
		cache:    loader.NewCache(opt.CacheSize),
		validate: v,
		metrics:  NewMetrics(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(StructuredLogger(s.log, s.metrics))
	r.Use(Recoverer(s.log))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opt.RateLimit > 0 {
			r.Use(NewRateLimiter(s.opt.RateLimit, s.opt.RateBurst, s.log).Handler)
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", s.createDataset)
			r.Get("/", s.listDatasets)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(s.DatasetCtx)
				r.Get("/", s.describeDataset)
				r.Delete("/", s.deleteDataset)
				r.Post("/view", s.view)
				r.Post("/aggregate", s.aggregate)
				r.Post("/charts", s.charts)
				r.Post("/report", s.report)
				r.Post("/export", s.export)
			})
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opt.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", s.opt.Addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"status": "ok", "datasets": s.store.Len()})
}

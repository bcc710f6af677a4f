package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/guideshop/core/buildinfo"
	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/internal/catalog"
	"github.com/m3rciful/guideshop/internal/shop"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options lists what the endpoints report on. Nil fields are skipped.
type Options struct {
	DB       Pinger
	Views    shop.ViewLog
	Outcomes func() map[string]int64
	// Pending returns the number of queued message deletions.
	Pending func() int
	// SendErrors counts outbound Bot API calls that failed after retries.
	SendErrors func() uint64
}

// Server serves GET /healthz and GET /stats.
type Server struct {
	opts Options
}

// New builds a Server.
func New(opts Options) *Server {
	return &Server{opts: opts}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/stats", s.stats)
	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	DB      string `json:"db,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: buildinfo.Version}
	code := http.StatusOK
	if s.opts.DB != nil {
		resp.DB = "ok"
		if err := s.opts.DB.PingContext(r.Context()); err != nil {
			logger.Warn(r.Context(), "http", "healthz",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			resp.Status, resp.DB = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, code, resp)
}

type statsResponse struct {
	Viewers    []catalog.ViewerStats `json:"viewers"`
	Outcomes   map[string]int64      `json:"outcomes,omitempty"`
	Reaper     int                   `json:"reaper_pending"`
	SendErrors uint64                `json:"send_errors"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Viewers: []catalog.ViewerStats{}}
	if s.opts.Views != nil {
		views, err := s.opts.Views.Views(r.Context())
		if err != nil {
			logger.Error(r.Context(), "http", "stats", append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
			respondError(w, http.StatusInternalServerError, "views_unavailable", "view log is unavailable")
			return
		}
		if st := catalog.Summarize(views); len(st) > 0 {
			resp.Viewers = st
		}
	}
	if s.opts.Outcomes != nil {
		resp.Outcomes = s.opts.Outcomes()
	}
	if s.opts.Pending != nil {
		resp.Reaper = s.opts.Pending()
	}
	if s.opts.SendErrors != nil {
		resp.SendErrors = s.opts.SendErrors()
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http", "listen", slog.String("listen", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

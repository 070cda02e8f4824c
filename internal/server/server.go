package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"layofflens/aggregator/internal/metrics"
	"layofflens/aggregator/internal/server/api"
)

// Options configures the HTTP server.
type Options struct {
	ListenAddr string
	// AdminToken guards the endpoints that write. Empty disables them.
	AdminToken string
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// unauthorized writes the same {"error": ...} body the API handlers use.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}

// tokenMiddleware admits requests carrying the admin token in the token query
// parameter or the X-API-Key header. With no token configured every request
// is refused.
func tokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				unauthorized(w)
				return
			}

			reqToken := r.URL.Query().Get("token")
			if reqToken == "" {
				reqToken = r.Header.Get("X-API-Key")
			}
			if reqToken == "" || subtle.ConstantTimeCompare([]byte(reqToken), []byte(token)) != 1 {
				hlog.FromRequest(r).Warn().Msg("Rejected request with missing or wrong admin token")
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the full handler chain: routes, per-route metrics, auth
// on the write endpoints, CORS and request logging.
func NewRouter(h *api.Handler, opts Options) http.Handler {
	m := opts.Metrics
	admin := tokenMiddleware(opts.AdminToken)

	route := func(name string, fn http.HandlerFunc) http.Handler {
		return m.Instrument(name, fn)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /FetchNow", admin(route("FetchNow", h.FetchNow)))
	mux.Handle("POST /SweepNow", admin(route("SweepNow", h.SweepNow)))
	mux.Handle("GET /ListItems", route("ListItems", h.ListItems))
	mux.Handle("GET /GetTopChannels", route("GetTopChannels", h.GetTopChannels))
	mux.Handle("GET /GetLayoffStats", route("GetLayoffStats", h.GetLayoffStats))
	mux.Handle("GET /ExportItems", route("ExportItems", h.ExportItems))
	mux.HandleFunc("GET /health", h.Health)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	})
	handler := c.Handler(mux)

	handler = hlog.NewHandler(opts.Logger)(handler)
	handler = hlog.MethodHandler("method")(handler)
	handler = hlog.URLHandler("url")(handler)
	handler = hlog.RemoteAddrHandler("remote_addr")(handler)
	handler = hlog.UserAgentHandler("user_agent")(handler)
	handler = hlog.RequestIDHandler("req_id", "Request-Id")(handler)
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(handler)

	return handler
}

// RunServer serves until SIGINT/SIGTERM and then shuts down gracefully.
func RunServer(h *api.Handler, opts Options) error {
	logger := opts.Logger.With().Str("service", "layofflens-api").Logger()
	opts.Logger = logger

	if opts.AdminToken == "" {
		logger.Warn().Msg("No admin token configured, FetchNow and SweepNow are disabled")
	}

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           NewRouter(h, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// FetchNow holds the connection for a whole ingestion run.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", opts.ListenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErr:
		return err

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

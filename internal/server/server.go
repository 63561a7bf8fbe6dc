// Package server provides the HTTP server and routing for the paper trading API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/di"
	ledgerhandlers "github.com/finsight/papertrade/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/finsight/papertrade/internal/modules/portfolio/handlers"
	quotehandlers "github.com/finsight/papertrade/internal/modules/quotes/handlers"
	snapshothandlers "github.com/finsight/papertrade/internal/modules/snapshots/handlers"
	tradinghandlers "github.com/finsight/papertrade/internal/modules/trading/handlers"
	watchlisthandlers "github.com/finsight/papertrade/internal/modules/watchlist/handlers"
)

// requestTimeout bounds non-streaming API requests. It must exceed the
// quote batch budget so live valuations can complete.
const requestTimeout = 90 * time.Second

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	CORSOrigin string
	Container  *di.Container
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	container      *di.Container
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container
	log := cfg.Log.With().Str("component", "server").Logger()

	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	cfg.CORSOrigin = origin

	s := &Server{
		router:    chi.NewRouter(),
		log:       log,
		cfg:       cfg,
		container: c,
		systemHandlers: NewSystemHandlers(
			c.Databases(),
			c.AlphaVantageClient,
			c.EventBus,
			c.Scheduler,
			cfg.Log,
		),
		eventsStream: NewEventsStreamHandler(c.EventBus, []string{originPattern(origin)}, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No write timeout: websocket connections are long-lived and
		// API requests are bounded by requestTimeout instead
	}

	return s
}

// originPattern converts a CORS origin into a websocket host pattern
func originPattern(origin string) string {
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return u.Host
	}
	return origin
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: s.cfg.CORSOrigin != "*",
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(c.Verifier, s.cfg.Log))

		// Streaming, outside the request timeout
		r.Get("/events/ws", s.eventsStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

			quotehandlers.NewQuoteHandlers(c.QuoteService, c.SearchService, c.CoinGeckoClient, s.cfg.Log).RegisterRoutes(r)
			portfoliohandlers.NewHandler(c.PortfolioService, s.cfg.Log).RegisterRoutes(r)
			snapshothandlers.NewHandler(c.SnapshotService, s.cfg.Log).RegisterRoutes(r)
			ledgerhandlers.NewHandler(c.TransactionLog, s.cfg.Log).RegisterRoutes(r)
			tradinghandlers.NewTradingHandlers(c.TradingService, s.cfg.Log).RegisterRoutes(r)
			watchlisthandlers.NewHandler(c.WatchlistRepo, c.QuoteService, c.EventManager, s.cfg.Log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

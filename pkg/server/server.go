// Package server hosts the local JSON/HTTP + WebSocket API the browser
// extension talks to: configuration, providers, collection records, and
// chat dispatch.
package server

import (
	"context"
	stdliberrors "errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/logging"
	"github.com/samanhappy/selectly/pkg/model"
	"github.com/samanhappy/selectly/pkg/storage"
)

// Config controls the API server behavior.
type Config struct {
	BindAddress    string
	AllowedOrigins []string
	Version        string
}

// Server hosts the extension-facing API.
type Server struct {
	cfg        Config
	configs    *config.Store
	records    *storage.Store
	router     *model.Router
	httpServer *http.Server
	logger     *log.Logger
	appLogger  *logging.Logger
}

// NewServer constructs a server bound to the provided stores and router.
func NewServer(cfg Config, configs *config.Store, records *storage.Store, router *model.Router, appLogger *logging.Logger) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:4530"
	}
	if len(cfg.AllowedOrigins) == 0 {
		// Extension pages and local dev servers.
		cfg.AllowedOrigins = []string{"chrome-extension://", "moz-extension://", "http://localhost", "http://127.0.0.1"}
	}
	if appLogger == nil {
		appLogger = logging.Discard()
	}
	return &Server{
		cfg:       cfg,
		configs:   configs,
		records:   records,
		router:    router,
		logger:    log.New(os.Stderr, "[selectly] ", log.LstdFlags),
		appLogger: appLogger,
	}
}

// Routes builds the full route tree. Split out from Start for tests.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(s.corsMiddleware)
	router.Use(s.securityHeadersMiddleware)
	router.Use(s.metricsMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", handleMetrics)

	router.Route("/api", func(r chi.Router) {
		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Put("/", s.handleSaveConfig)
			r.Get("/export", s.handleExportConfig)
			r.Post("/import", s.handleImportConfig)
		})
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", s.handleListProviders)
			r.Put("/{providerID}", s.handleSetProvider)
			r.Delete("/{providerID}", s.handleRemoveProvider)
			r.Post("/{providerID}/test", s.handleTestProvider)
		})
		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Post("/", s.handleCreateRecord)
			r.Get("/export", s.handleExportRecords)
			r.Put("/{recordID}/note", s.handleUpdateRecordNote)
			r.Delete("/{recordID}", s.handleDeleteRecord)
		})
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
	})

	router.Get("/ws/chat", s.handleChatSocket)

	return router
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully and flushes any pending configuration write.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Printf("serving API on %s", s.cfg.BindAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.configs.Flush(shutdownCtx)
		return err
	})

	return g.Wait()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// corsMiddleware adds CORS headers based on allowed origins configuration.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) isOriginAllowed(origin string) bool {
	origin = strings.ToLower(strings.TrimSpace(origin))
	for _, allowed := range s.cfg.AllowedOrigins {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		// Extension scheme prefixes match any extension ID.
		if strings.HasSuffix(allowed, "://") {
			if strings.HasPrefix(origin, allowed) {
				return true
			}
			continue
		}
		if origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
	}
	return false
}

// securityHeadersMiddleware adds standard security headers to responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/rs/cors"

	"github.com/nodeenergy/nodeenergy/pkg/card"
	"github.com/nodeenergy/nodeenergy/pkg/live"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// oidcIssuers maps the supported providers to their issuer URLs.
var oidcIssuers = map[string]string{
	"google": "https://accounts.google.com",
	"apple":  "https://appleid.apple.com",
}

// Server renders node energy cards over HTTP and pushes re-rendered cards to
// websocket subscribers whenever a state snapshot is pushed.
type Server struct {
	source source.Source
	hub    *live.Hub
	cards  map[string]types.CardConfig

	listenAddr    string
	httpServer    *http.Server
	corsOrigins   []string
	allowedEmails []string
	oidcAudiences map[string]string
	oidcVerifiers map[string]tokenVerifier
	serverName    string
}

// Configured initializes the Server with its source.
// It uses lflag to register command-line flags for configuration.
func Configured(src source.Source) *Server {
	srv := &Server{
		source:     src,
		hub:        live.NewHub(),
		serverName: "nodeenergy",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	cardsFile := lflag.String("cards-file", "", "Path to a YAML file of named cards served under /cards/{name}")
	corsOrigins := lflag.String("cors-origins", "", "comma-delimited list of dashboard origins allowed to fetch cards")
	allowedEmails := lflag.String("allowed-emails", "", "comma-delimited list of email addresses allowed when auth is enabled")
	oidcAudiences := map[string]string{}
	lflag.JSON(&oidcAudiences, "oidc-audiences", oidcAudiences, "JSON map of provider (google/apple) to audience/client ID; enables auth")

	lflag.Do(func() {
		ctx := context.Background()
		srv.listenAddr = *listenAddr
		srv.corsOrigins = splitList(*corsOrigins)
		srv.allowedEmails = splitList(*allowedEmails)

		if *cardsFile != "" {
			cards, err := card.LoadConfigs(*cardsFile)
			if err != nil {
				log.Ctx(ctx).Error("failed to load cards file", slog.String("path", *cardsFile), slog.Any("error", err))
				os.Exit(1)
			}
			srv.cards = cards
		}

		if len(oidcAudiences) > 0 {
			srv.oidcAudiences = make(map[string]string, len(oidcAudiences))
			srv.oidcVerifiers = make(map[string]tokenVerifier, len(oidcAudiences))
			for n, a := range oidcAudiences {
				issuer, ok := oidcIssuers[n]
				if !ok {
					log.Ctx(ctx).Error("unsupported oidc audience client", slog.String("client", n))
					os.Exit(1)
				}
				provider, err := oidc.NewProvider(ctx, issuer)
				if err != nil {
					log.Ctx(ctx).Error("failed to initialize OIDC provider", slog.String("client", n), slog.Any("error", err))
					os.Exit(1)
				}
				srv.oidcVerifiers[n] = oidcVerifier(provider.Verifier(&oidc.Config{ClientID: a}))
				srv.oidcAudiences[n] = a
			}
		}
	})

	return srv
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/cards/{entity}", s.handleCard)
	apiMux.HandleFunc("GET /api/cards/{entity}/tooltip", s.handleTooltip)
	apiMux.HandleFunc("GET /api/cards/{entity}/scenarios", s.handleScenarios)
	apiMux.HandleFunc("GET /api/entities", s.handleEntities)
	apiMux.HandleFunc("POST /api/states/{entity}", s.handlePutState)
	apiMux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	apiMux.HandleFunc("POST /api/auth/login", s.handleLogin)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	apiMux.HandleFunc("GET /cards/{name}", s.handleNamedCard)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("/cards/", apiMux)
	mux.HandleFunc("/healthz", s.handleHealthz)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: len(s.corsOrigins) > 0,
	})
	compressed := gziphandler.GzipHandler(s.securityHeadersMiddleware(c.Handler(s.authMiddleware(mux))))

	// the websocket upgrade needs the raw connection so it skips compression
	root := http.NewServeMux()
	root.Handle("/ws", s.authMiddleware(live.NewHandler(s.hub, s.renderMessage, s.corsOrigins)))
	root.Handle("/", compressed)
	return s.revisionMiddleware(root)
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr), slog.Int("cards", len(s.cards)))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

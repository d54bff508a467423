package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/jobgate/internal/config"
	"github.com/marcus/jobgate/internal/dedup"
	"github.com/marcus/jobgate/internal/pipeline"
	"github.com/marcus/jobgate/internal/server/middleware"
	"github.com/marcus/jobgate/internal/server/ratelimit"
	"github.com/marcus/jobgate/internal/stages"
	"github.com/marcus/jobgate/internal/store"
)

// Config holds server configuration.
type Config struct {
	Addr string
	// Operators maps operator usernames to bcrypt password hashes.
	Operators map[string]string
	Auth      *config.AuthConfig
	// Window bounds the candidate pool handed to the gate.
	Window time.Duration
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int
}

// Server is the HTTP API over the gate, store, and orchestrator.
type Server struct {
	httpServer *http.Server
	handler    http.Handler

	store        store.Store
	gate         *dedup.Gate
	orchestrator *pipeline.Orchestrator
	reviews      *stages.MemoryReviewQueue

	jwtService  *JWTService
	authHandler *AuthHandler
	rateLimiter *ratelimit.Limiter
	window      time.Duration
	now         func() time.Time
}

// New creates a server over the given collaborators.
func New(cfg Config, st store.Store, gate *dedup.Gate, orch *pipeline.Orchestrator, reviews *stages.MemoryReviewQueue) (*Server, error) {
	if cfg.Auth == nil {
		return nil, fmt.Errorf("auth config is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = dedup.DefaultWindow
	}

	s := &Server{
		store:        st,
		gate:         gate,
		orchestrator: orch,
		reviews:      reviews,
		window:       cfg.Window,
		now:          time.Now,
	}

	s.jwtService = NewJWTService(cfg.Auth)
	s.authHandler = NewAuthHandler(cfg.Operators, cfg.Auth, s.jwtService)
	s.rateLimiter = ratelimit.NewLimiter(cfg.RateLimit, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/token", s.authHandler.Token)

	authed := middleware.Auth(s.jwtService.AsTokenValidator())
	mux.Handle("POST /postings", authed(http.HandlerFunc(s.handleSubmitPosting)))
	mux.Handle("GET /postings/{source}/{id}", authed(http.HandlerFunc(s.handleGetPosting)))
	mux.Handle("GET /runs", authed(http.HandlerFunc(s.handleListRuns)))
	mux.Handle("GET /runs/{id}", authed(http.HandlerFunc(s.handleGetRun)))
	mux.Handle("POST /runs/{id}/start", authed(http.HandlerFunc(s.handleStartRun)))
	mux.Handle("POST /runs/{id}/resume", authed(http.HandlerFunc(s.handleResumeRun)))

	s.handler = s.withRateLimit(s.withLogging(mux))
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // pipeline runs execute inline
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler exposes the composed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens for requests until an interrupt, then shuts down
// gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.rateLimiter.Stop()
	log.Println("server stopped")
	return nil
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s %s in %v", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// withRateLimit enforces the per-client request allowance.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := s.rateLimiter.Allow(clientID(r))
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		}
		if !info.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())+1))
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID identifies the client for rate limiting, by IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbocsi/kiosk/broker"
	"github.com/mbocsi/kiosk/services"
)

// TokenHeader carries the maintenance session token
const TokenHeader = "X-Maintenance-Token"

// Server serves the kiosk API, the maintenance page and the live event feed
type Server struct {
	addr      string
	services  *services.ServiceContainer
	templates *Templates
	feed      *Feed

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(addr string, serviceContainer *services.ServiceContainer, b *broker.Broker) *Server {
	return &Server{
		addr:      addr,
		services:  serviceContainer,
		templates: NewTemplates(),
		feed:      NewFeed(b),
	}
}

// Routes returns the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.HandleHome)
	r.Get("/maintenance", s.HandleMaintenancePage)
	r.Get("/ws/events", s.feed.HandleFeed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.HandleStatus)

		r.Get("/artisans", s.HandleArtisans)
		r.Get("/artisans/{id}", s.HandleArtisanDetail)
		r.Get("/artisans/{id}/questions", s.HandleQuestions)
		r.Post("/artisans/{id}/media/{kind}", s.HandlePlayMedia)
		r.Post("/artisans/{id}/questions/{key}", s.HandleAskQuestion)

		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/tap", s.HandleTap)
			r.Post("/unlock", s.HandleUnlock)

			r.Group(func(r chi.Router) {
				r.Use(s.requireMaintenance)
				r.Post("/lock", s.HandleLock)
				r.Get("/endpoint", s.HandleGetEndpoint)
				r.Put("/endpoint", s.HandleUpdateEndpoint)
				r.Post("/commands", s.HandleSendCommand)
				r.Get("/discover", s.HandleDiscover)
			})
		})
	})
	return r
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	slog.Info("Starting HTTP server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr is the bound address once Start is running, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "addr", s.addr)
	s.feed.Close()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String())
	})
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/npezzotti/chat-relay/internal/config"
	"github.com/npezzotti/chat-relay/internal/relay"
	"github.com/npezzotti/chat-relay/internal/store"
)

// Server is the thin HTTP front of the relay: the websocket upgrade endpoint,
// a health probe and the debug vars already mounted on the mux.
type Server struct {
	log   zerolog.Logger
	relay *relay.Server
	store store.Store
	srv   *http.Server
	cfg   *config.Config
}

func NewServer(mux *http.ServeMux, logger zerolog.Logger, rs *relay.Server, st store.Store, cfg *config.Config) *Server {
	s := &Server{
		log:   logger.With().Str("component", "api").Logger(),
		relay: rs,
		store: st,
		cfg:   cfg,
	}

	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthz)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	s.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h,
	}

	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
)

// checkOrigin admits same-origin requests and any origin on the configured
// allow list. An empty list admits everything, matching the CORS default.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	return slices.Contains(s.cfg.AllowedOrigins, origin) ||
		slices.Contains(s.cfg.AllowedOrigins, "*")
}

// serveWs upgrades the connection and hands it to the relay. Authentication
// happens in-band over the socket, so the upgrade itself is unauthenticated.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade")
		return
	}

	s.relay.HandleConnection(conn)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.log.Error().Err(err).Msg("store ping")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

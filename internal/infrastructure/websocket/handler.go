package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking belongs to whatever reverse proxy/CORS policy fronts
	// this service, not the upgrade itself.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /ws/execution/{run_id} requests to WebSocket connections
// and hands them to the Hub.
type Handler struct {
	hub    *Hub
	auth   Authenticator
	logger *zerolog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, auth Authenticator, logger *zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		auth:   auth,
		logger: logger,
	}
}

// ServeHTTP authenticates the connection against the run named in the
// request path, upgrades it, and registers the resulting Client with the
// Hub. A client that connects at /ws/execution/{run_id} is auto-subscribed
// to that run so it starts receiving events without a separate "subscribe"
// command round trip.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	userID, err := h.auth.Authenticate(r, runID)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("run_id", runID).
			Msg("websocket authentication failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, userID, h.hub, conn)

	h.logger.Info().
		Str("client_id", clientID).
		Str("user_id", userID).
		Str("run_id", runID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket client connected")

	h.hub.register <- client
	if runID != "" {
		h.hub.Subscribe(client, "", runID)
	}

	go client.writePump()
	go client.readPump()
}

// SetCheckOrigin allows customizing the origin check function.
func SetCheckOrigin(f func(r *http.Request) bool) {
	upgrader.CheckOrigin = f
}

// SetBufferSizes sets the read and write buffer sizes for WebSocket connections.
func SetBufferSizes(readSize, writeSize int) {
	upgrader.ReadBufferSize = readSize
	upgrader.WriteBufferSize = writeSize
}

package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans run/thinker events out to subscribed WebSocket clients.
// eventbus.WebSocketSink depends on this rather than *Hub directly so a
// future horizontally-scaled deployment can swap in a Redis-backed
// implementation without touching the event-publishing side.
type Broadcaster interface {
	Broadcast(userID, pipelineID, runID string, event *WSEvent)
}

// RunCanceller cancels an in-flight run by ID. Wired from rest.Server so a
// client's "cancel" command reaches the context driving the Doer's actual
// execution, not just this package's bookkeeping.
type RunCanceller interface {
	CancelRun(runID string) bool
}

// broadcastMsg is one event queued for fan-out to matching clients.
type broadcastMsg struct {
	userID     string
	pipelineID string
	runID      string
	event      *WSEvent
}

// Hub owns every live Client and the indexes used to route a broadcast
// event to the clients subscribed to its user, pipeline, or run. All state
// is only ever touched from Run's goroutine or under mu, so Subscribe/
// Unsubscribe/Broadcast are safe to call concurrently from Client readers.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	byUserID     map[string]map[*Client]bool
	byPipelineID map[string]map[*Client]bool
	byRunID      map[string]map[*Client]bool

	canceller RunCanceller

	logger *zerolog.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *broadcastMsg, 256),
		byUserID:     make(map[string]map[*Client]bool),
		byPipelineID: make(map[string]map[*Client]bool),
		byRunID:      make(map[string]map[*Client]bool),
		logger:       logger,
	}
}

// SetCanceller wires the collaborator that can actually stop a run. Called
// once at startup, after both the Hub and the rest.Server (which implements
// RunCanceller) exist — see cmd/server.
func (h *Hub) SetCanceller(c RunCanceller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canceller = c
}

// Run starts the hub's main event loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	// Index by user ID
	if client.userID != "" {
		if h.byUserID[client.userID] == nil {
			h.byUserID[client.userID] = make(map[*Client]bool)
		}
		h.byUserID[client.userID][client] = true
	}

	h.logger.Debug().
		Str("client_id", client.id).
		Str("user_id", client.userID).
		Int("total_clients", len(h.clients)).
		Msg("client registered")
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)

	// Remove from user index
	if client.userID != "" {
		if clients, ok := h.byUserID[client.userID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byUserID, client.userID)
			}
		}
	}

	// Drop the disconnecting client from every subscription index it joined.
	client.subs.mu.RLock()
	for pipelineID := range client.subs.pipelines {
		if clients, ok := h.byPipelineID[pipelineID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byPipelineID, pipelineID)
			}
		}
	}
	for runID := range client.subs.runs {
		if clients, ok := h.byRunID[runID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byRunID, runID)
			}
		}
	}
	client.subs.mu.RUnlock()

	h.logger.Debug().
		Str("client_id", client.id).
		Str("user_id", client.userID).
		Int("total_clients", len(h.clients)).
		Msg("client unregistered")
}

// Broadcast sends an event to relevant clients.
// Implements the Broadcaster interface.
func (h *Hub) Broadcast(userID, pipelineID, runID string, event *WSEvent) {
	h.broadcast <- &broadcastMsg{
		userID:     userID,
		pipelineID: pipelineID,
		runID:      runID,
		event:      event,
	}
}

// broadcastEvent sends an event to all matching clients
func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Collect target clients
	targets := make(map[*Client]bool)

	// If userID is specified, only send to that user's clients
	if msg.userID != "" {
		if clients, ok := h.byUserID[msg.userID]; ok {
			for client := range clients {
				if client.shouldReceive(msg.pipelineID, msg.runID) {
					targets[client] = true
				}
			}
		}
	} else {
		// Send to all clients that match the subscription
		// First check execution subscriptions (most specific)
		if msg.runID != "" {
			if clients, ok := h.byRunID[msg.runID]; ok {
				for client := range clients {
					targets[client] = true
				}
			}
		}

		// Then check pipeline subscriptions
		if msg.pipelineID != "" {
			if clients, ok := h.byPipelineID[msg.pipelineID]; ok {
				for client := range clients {
					targets[client] = true
				}
			}
		}
	}

	// Send to all target clients
	for client := range targets {
		select {
		case client.send <- msg.event:
		default:
			// Client send buffer full, skip this message
			h.logger.Warn().
				Str("client_id", client.id).
				Str("event_type", msg.event.Type).
				Msg("client buffer full, dropping message")
		}
	}
}

// Subscribe adds a subscription for a client
func (h *Hub) Subscribe(client *Client, pipelineID, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()

	if pipelineID != "" {
		client.subs.pipelines[pipelineID] = true
		if h.byPipelineID[pipelineID] == nil {
			h.byPipelineID[pipelineID] = make(map[*Client]bool)
		}
		h.byPipelineID[pipelineID][client] = true

		h.logger.Debug().
			Str("client_id", client.id).
			Str("pipeline_id", pipelineID).
			Msg("client subscribed to pipeline")
	}

	if runID != "" {
		client.subs.runs[runID] = true
		if h.byRunID[runID] == nil {
			h.byRunID[runID] = make(map[*Client]bool)
		}
		h.byRunID[runID][client] = true

		h.logger.Debug().
			Str("client_id", client.id).
			Str("run_id", runID).
			Msg("client subscribed to execution")
	}
}

// Unsubscribe removes a subscription for a client
func (h *Hub) Unsubscribe(client *Client, pipelineID, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()

	if pipelineID != "" {
		delete(client.subs.pipelines, pipelineID)
		if clients, ok := h.byPipelineID[pipelineID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byPipelineID, pipelineID)
			}
		}

		h.logger.Debug().
			Str("client_id", client.id).
			Str("pipeline_id", pipelineID).
			Msg("client unsubscribed from pipeline")
	}

	if runID != "" {
		delete(client.subs.runs, runID)
		if clients, ok := h.byRunID[runID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byRunID, runID)
			}
		}

		h.logger.Debug().
			Str("client_id", client.id).
			Str("run_id", runID).
			Msg("client unsubscribed from execution")
	}
}

// Canceller returns the wired RunCanceller, or nil if SetCanceller was never
// called (e.g. in tests that don't exercise cancellation).
func (h *Hub) Canceller() RunCanceller {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.canceller
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/campushub/assess-backend/internal/engine"
)

// Hub fans engine events out to every connected WebSocket client. It is
// the engine's EventSink: the engine emits abstract events, the hub turns
// them into wire messages. A client whose write fails is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register wraps a connection and adds it to the broadcast set. The
// returned client is the only valid write path for the connection.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := NewClient(conn)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	return client
}

// Unregister removes a client from the broadcast set.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

func (h *Hub) broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if err := client.WriteTyped(v); err != nil {
			h.log.Debug().Err(err).Msg("Dropping client after failed write")
			client.Close()
			delete(h.clients, client)
		}
	}
}

// ExamSubmitted implements engine.EventSink.
func (h *Hub) ExamSubmitted(ev engine.OutcomeEvent) {
	h.broadcast(OutcomeMessage{
		Event:          EventOutcome,
		ExamID:         ev.ExamID,
		Outcome:        string(ev.Outcome),
		Score:          ev.Score,
		CorrectAnswers: ev.CorrectAnswers,
		TotalQuestions: ev.TotalQuestions,
		Forced:         ev.Forced,
	})
}

// TimeExpired implements engine.EventSink.
func (h *Hub) TimeExpired(examID string) {
	h.broadcast(TimeExpiredMessage{Event: EventTimeExpired, ExamID: examID})
}

// PersistenceFailure implements engine.EventSink.
func (h *Hub) PersistenceFailure(examID string, err error) {
	h.broadcast(PersistenceFailureMessage{
		Event:  EventPersistenceFailure,
		ExamID: examID,
		Reason: err.Error(),
	})
}

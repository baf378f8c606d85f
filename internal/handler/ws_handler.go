package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/campushub/assess-backend/internal/engine"
	ws "github.com/campushub/assess-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams engine events to UI clients and accepts session
// actions over the same connection.
type WSHandler struct {
	engine   *engine.Engine
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(eng *engine.Engine, hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		engine:   eng,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// EventStream godoc
// WS /ws/v1/events
// Upgrades to WebSocket. The client receives every engine event (outcome,
// time expired, persistence failure) and may send answer/submit/abandon/
// state/ping actions. All writes, replies and broadcasts alike, go through
// the hub-registered client so they never interleave on the wire.
func (h *WSHandler) EventStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := h.hub.Register(conn)
	defer client.Close()
	defer h.hub.Unregister(client)

	h.log.Info().Str("remote", client.RemoteAddr()).Msg("Client connected")

	for {
		raw, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(client, raw)
	}
}

func (h *WSHandler) dispatch(client *ws.Client, raw []byte) {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		client.WriteError("malformed message")
		return
	}

	switch env.Action {
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			client.WriteError("malformed answer")
			return
		}
		if err := h.engine.RecordAnswer(req.QuestionID, req.Option); err != nil {
			client.WriteError(err.Error())
			return
		}
		h.writeState(client)

	case ws.ActionSubmit:
		var req ws.SubmitRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			client.WriteError("malformed submit")
			return
		}
		// The outcome reaches this client through the hub broadcast.
		if _, err := h.engine.Submit(req.Force); err != nil {
			client.WriteError(err.Error())
		}

	case ws.ActionAbandon:
		if err := h.engine.Abandon(); err != nil {
			client.WriteError(err.Error())
			return
		}
		h.writeState(client)

	case ws.ActionState:
		h.writeState(client)

	case ws.ActionPing:
		client.WriteTyped(ws.PongResponse{Event: ws.EventPong})

	default:
		client.WriteError("unknown action")
	}
}

func (h *WSHandler) writeState(client *ws.Client) {
	snap, ok := h.engine.ActiveSnapshot()
	if !ok {
		client.WriteTyped(ws.StateResponse{Event: ws.EventState, Snapshot: nil})
		return
	}
	client.WriteTyped(ws.StateResponse{Event: ws.EventState, Snapshot: snap})
}

package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	server "klinik-hewan/server"
)

// clientMessage is the envelope for everything a client sends over the
// socket. Type selects the command; unrelated fields are ignored.
type clientMessage struct {
	Ver      int     `json:"ver,omitempty"`
	Type     string  `json:"type"`
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Facing   string  `json:"facing"`
	Medicine string  `json:"medicine"`
	SentAt   int64   `json:"sentAt"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// subscription is the slice of the hub subscriber the session loop needs.
type subscription interface {
	WriteMessage(messageType int, data []byte) error
}

type wsHandler struct {
	hub      *server.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func newWSHandler(hub *server.Hub, logger *log.Logger) *wsHandler {
	return &wsHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

func (h *wsHandler) handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	vetID := r.URL.Query().Get("id")
	if vetID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", vetID, err)
		return
	}

	sub, ok := h.hub.Subscribe(vetID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown vet")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	session := subscription(sub)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(vetID)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", vetID, err)
			continue
		}

		switch msg.Type {
		case "input":
			if !h.hub.UpdateIntent(vetID, msg.DX, msg.DY, msg.Facing) {
				h.hub.Disconnect(vetID)
				return
			}
		case "heartbeat":
			now := time.Now()
			rtt, ok := h.hub.UpdateHeartbeat(vetID, now, msg.SentAt)
			if !ok {
				h.hub.Disconnect(vetID)
				return
			}
			reply := heartbeatMessage{
				Ver:        server.ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			if data, err := json.Marshal(reply); err == nil {
				session.WriteMessage(websocket.TextMessage, data)
			}
		case "call_next":
			h.hub.CallNext(vetID)
		case "treat":
			h.hub.Treat(vetID)
		case "exam_hit":
			h.hub.ExamHit(vetID)
		case "toggle_open":
			h.hub.ToggleOpen(vetID)
		case "reset":
			h.hub.Reset(vetID)
		case "buy":
			h.hub.Buy(vetID, msg.Medicine)
		default:
			h.logger.Printf("ignoring unknown command %q from %s", msg.Type, vetID)
		}
	}
}

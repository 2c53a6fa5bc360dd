package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/agent"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Asker 处理一条带角色标记的发言。
type Asker interface {
	Ask(ctx context.Context, roleName, text string) (*agent.Response, error)
}

// WebSocketHandler 实时发言推送处理器
type WebSocketHandler struct {
	asker    Asker
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(asker Asker) *WebSocketHandler {
	return &WebSocketHandler{
		asker: asker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logging.For("live"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// UtteranceMessage 转写后的发言
type UtteranceMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// conn 串行化写操作，gorilla 连接不支持并发写。
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	log := h.log.WithField("conn_id", uuid.NewString())
	log.Info("connection opened")
	defer log.Info("connection closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c, log)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		if err := h.handleMessage(ctx, c, &msg); err != nil {
			log.WithError(err).Warn("write failed")
			return
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, c *conn, msg *inboundMessage) error {
	if msg.Type != "utterance" {
		return h.sendError(c, "unsupported message type: "+msg.Type)
	}

	var utterance UtteranceMessage
	if err := json.Unmarshal(msg.Data, &utterance); err != nil {
		return h.sendError(c, "invalid utterance payload")
	}

	resp, err := h.asker.Ask(ctx, utterance.Role, utterance.Text)
	if err != nil {
		if errors.Is(err, role.ErrUnknownRole) {
			return h.sendError(c, err.Error())
		}
		h.log.WithError(err).Error("ask failed")
		return h.sendError(c, "failed to process utterance")
	}
	return c.writeJSON(outboundMessage{Type: "answer", Data: resp})
}

func (h *WebSocketHandler) sendError(c *conn, message string) error {
	return c.writeJSON(outboundMessage{Type: "error", Data: map[string]string{"message": message}})
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, c *conn, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

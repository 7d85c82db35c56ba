package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/nft-marketplace/backend/internal/auth"
	"github.com/nft-marketplace/backend/internal/config"
	"github.com/nft-marketplace/backend/internal/events"
	"github.com/nft-marketplace/backend/internal/middleware"
	"github.com/nft-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

type wsConn interface {
	WriteMessage(messageType int, data []byte) error
}

// WSHub pushes market events to connected clients. A client is dropped from
// the broadcast once the wallet account it authenticated with is replaced.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	session    middleware.AddressSource
	log        *zap.Logger

	mu      sync.RWMutex
	clients map[wsConn]string // conn -> address
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, session middleware.AddressSource, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		session:    session,
		log:        log,
		clients:    make(map[wsConn]string),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamMarket, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("ws encode failed", zap.String("type", event.Type), zap.Error(err))
		return
	}
	current := h.session.CurrentAddress()

	// writers on a conn must not overlap
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, address := range h.clients {
		// wallet_changed goes to everyone so stale clients learn to reconnect
		if address != current && event.Type != events.EventWalletChanged {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("ws write failed", zap.String("address", address), zap.Error(err))
		}
	}
}

func (h *WSHub) register(conn wsConn, address string) {
	h.mu.Lock()
	h.clients[conn] = address
	h.mu.Unlock()
}

func (h *WSHub) unregister(conn wsConn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Clients is the number of open connections.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil || models.NormalizeAddress(claims.Address) != h.session.CurrentAddress() {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	h.register(conn, models.NormalizeAddress(claims.Address))
	defer func() {
		h.unregister(conn)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

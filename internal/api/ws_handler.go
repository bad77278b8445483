package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"careercraft/internal/auth"
)

const (
	wsAuthTimeout   = 10 * time.Second
	wsWriteTimeout  = 5 * time.Second
	wsPingInterval  = 30 * time.Second
	wsPongWait      = 60 * time.Second
	userNotifyChFmt = "user_notify:%d"
)

// WsHandler pushes analysis completion and failure events to the browser.
// A client connects, authenticates with its access token as the first frame
// and then receives every message published to its user_notify channel.
type WsHandler struct {
	redisClient *redis.Client
	authService *auth.AuthService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewWsHandler builds a WsHandler. With no explicit origin allowlist the
// upgrade only accepts same-host origins.
func NewWsHandler(redisClient *redis.Client, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient: redisClient,
		authService: authService,
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

type wsAuthFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection upgrades the connection, authenticates the first frame
// and then forwards the user's notification channel until either side goes
// away.
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn)
	if err != nil {
		log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))

	ack, _ := json.Marshal(gin.H{"type": "ready"})
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
		log.Info("websocket closed before ack", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Drain incoming frames so close and pong frames are processed; the
	// client is not expected to send anything else after auth.
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.forwardNotifications(ctx, conn, userID, log); err != nil {
		log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	log.Info("websocket connection closed")
}

// authenticate reads the first frame and validates the access token in it.
func (h *WsHandler) authenticate(conn *websocket.Conn) (uint, error) {
	conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read auth frame: %w", err)
	}

	var msg wsAuthFrame
	if err := json.Unmarshal(frame, &msg); err != nil {
		h.closeWith(conn, websocket.ClosePolicyViolation, "invalid auth payload")
		return 0, fmt.Errorf("decode auth frame: %w", err)
	}
	if msg.Type != "auth" || msg.Token == "" {
		h.closeWith(conn, websocket.ClosePolicyViolation, "auth required")
		return 0, errors.New("first frame is not an auth message")
	}

	claims, err := h.authService.ValidateToken(msg.Token)
	if err != nil {
		h.closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
		return 0, fmt.Errorf("validate token: %w", err)
	}
	if claims.TokenType != "access" {
		h.closeWith(conn, websocket.ClosePolicyViolation, "access token required")
		return 0, fmt.Errorf("token type %q is not usable here", claims.TokenType)
	}

	return claims.UserID, nil
}

// forwardNotifications relays the user's redis channel onto the socket and
// keeps the connection alive with periodic pings.
func (h *WsHandler) forwardNotifications(ctx context.Context, conn *websocket.Conn, userID uint, log *slog.Logger) error {
	channel := fmt.Sprintf(userNotifyChFmt, userID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to notification channel", slog.String("channel", channel))

	events := pubsub.Channel()
	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
		case <-pings.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func (h *WsHandler) closeWith(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/domain/ids"
)

// Handler upgrades authenticated HTTP requests to realtime connections and
// runs their write pumps.
type Handler struct {
	hub          *Hub
	jwt          *auth.JWTManager
	origins      []string
	writeTimeout time.Duration
	logger       zerolog.Logger
}

func NewHandler(hub *Hub, jwt *auth.JWTManager, origins []string, writeTimeout time.Duration, logger zerolog.Logger) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Handler{
		hub:          hub,
		jwt:          jwt,
		origins:      origins,
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("component", "realtime").Logger(),
	}
}

// ServeHTTP performs the handshake. The token is verified before the upgrade
// so unauthenticated clients are refused with a plain 401 and never become a
// connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := h.jwt.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	connID, err := ids.NewULID()
	if err != nil {
		h.logger.Error().Err(err).Msg("generating connection id")
		ws.Close(websocket.StatusInternalError, "")
		return
	}
	conn := h.hub.Registry().Register(connID, Identity{
		UserID:   claims.UserID(),
		Username: claims.Username,
		Role:     claims.Role,
	})
	defer h.hub.Registry().Unregister(connID)

	h.logger.Info().
		Str("conn_id", connID).
		Str("user_id", claims.UserID()).
		Str("username", claims.Username).
		Msg("realtime connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients only listen. Drain reads so control frames are processed and
	// the context is cancelled when the peer goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	h.writePump(ctx, ws, conn)

	ws.Close(websocket.StatusNormalClosure, "")
	h.logger.Info().
		Str("conn_id", connID).
		Str("user_id", claims.UserID()).
		Msg("realtime connection closed")
}

func (h *Handler) writePump(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-conn.Events():
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(writeCtx, ws, event)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

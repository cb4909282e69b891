package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/gocomet/ride-booking/pkg/logger"
	"github.com/gocomet/ride-booking/pkg/response"
	ws "github.com/gocomet/ride-booking/pkg/websocket"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket authenticates the connection by token query parameter and
// attaches it to the hub.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, errors.Unauthorized("Token query parameter required", nil))
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		response.Error(c, errors.Unauthorized("Invalid token subject", err))
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, errors.Unauthorized("Account not found", err))
		return
	}
	if !u.CanAuthenticate() {
		response.Error(c, errors.ErrAccountBlocked)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			logger.String("user_id", u.ID.String()),
			logger.Err(err))
		return
	}

	client := ws.NewClient(h.hub, conn, u.ID.String(), string(u.Role), h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: 1024,
	// Non-browser clients such as the CLI send no Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleWebSocket serves GET /gateway. The connection starts unidentified;
// scopes can only be subscribed after a successful IDENTIFY.
func (m *Manager) HandleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("gateway upgrade failed", "remote", c.RealIP(), "error", err)
		return nil
	}

	conn := newConnection(ws, m)
	hello := HelloData{HeartbeatInterval: int(heartbeatInterval.Milliseconds())}
	conn.SendPayload(GatewayPayload{Op: OpHello, Data: mustMarshal(hello)})

	go conn.writePump()
	go conn.readPump()
	return nil
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"tightlines/middleware"
)

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// serveWS runs after WebSocketAuth, whose locals survive the upgrade.
func (a *API) serveWS(conn *websocket.Conn) {
	userID, ok := conn.Locals(middleware.LocalUserID).(uint)
	if !ok || userID == 0 {
		_ = conn.Close()
		return
	}
	a.hub.Serve(conn, userID)
}

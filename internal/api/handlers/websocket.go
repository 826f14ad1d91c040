package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/coinduel/backend/internal/ws"
)

// HandleWebSocket upgrades an authenticated connection and attaches it to the
// event hub
func HandleWebSocket(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		ws.ServeWS(hub, c.Writer, c.Request, userID.String())
	}
}

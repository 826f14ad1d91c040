package ws

import (
	"log"
	"net/http"
)

// ServeWS upgrades an authenticated HTTP request and attaches the connection
// to the hub. The caller has already resolved the user identity.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed for user %s: %v", userID, err)
		return
	}

	client := &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump(hub)
}

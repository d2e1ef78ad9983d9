package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/atrium-collab/atrium/internal/api/ws"
	"github.com/atrium-collab/atrium/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ChatWebSocket authenticates the handshake and hands the socket to the
// hub. Browsers cannot set headers on websocket requests, so the token
// may come in as ?token= instead of Authorization.
func (h *Handlers) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if after, ok := cutBearer(authHeader); ok {
			token = after
		}
	}
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := utils.ValidateJWTToken(token)
	if err != nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	userIDFloat, ok := claims["userID"].(float64)
	if !ok {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := ws.NewConnection(h.Hub, uint(userIDFloat), conn)
	go c.Run()
}

func cutBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):], true
	}
	return "", false
}

package api

import (
	"net/http"

	"github.com/atrium-collab/atrium/internal/api/handlers"
	"github.com/atrium-collab/atrium/internal/api/middleware"
)

// NewServer wires the routes and returns the http.Server; the caller
// owns ListenAndServe and shutdown.
func NewServer(addr string, h *handlers.Handlers) *http.Server {
	mux := http.NewServeMux()

	// Account routes
	mux.HandleFunc("POST /api/users", h.Register)
	mux.HandleFunc("POST /api/users/login", h.Login)

	// Chat routes
	auth := middleware.AuthMiddleware
	mux.Handle("POST /api/chats", auth(http.HandlerFunc(h.CreateChat)))
	mux.Handle("GET /api/chats", auth(http.HandlerFunc(h.GetChats)))
	mux.Handle("GET /api/chats/unread", auth(http.HandlerFunc(h.GetUnreadCounts)))
	mux.Handle("GET /api/chats/{id}", auth(http.HandlerFunc(h.GetChat)))
	mux.Handle("GET /api/chats/{id}/messages", auth(http.HandlerFunc(h.GetMessages)))
	mux.Handle("GET /api/chats/{id}/members", auth(http.HandlerFunc(h.GetMembers)))
	mux.Handle("GET /api/chats/{id}/pins", auth(http.HandlerFunc(h.GetPinned)))
	mux.Handle("PATCH /api/chats/{id}/settings", auth(http.HandlerFunc(h.UpdateSettings)))
	mux.Handle("POST /api/chats/{id}/members", auth(http.HandlerFunc(h.AddMember)))
	mux.Handle("DELETE /api/chats/{id}/members/{userID}", auth(http.HandlerFunc(h.RemoveMember)))
	mux.Handle("POST /api/chats/{id}/leave", auth(http.HandlerFunc(h.LeaveChat)))
	mux.Handle("POST /api/chats/{id}/roles", auth(http.HandlerFunc(h.ChangeRole)))
	mux.Handle("POST /api/chats/{id}/read", auth(http.HandlerFunc(h.MarkRead)))

	// Websocket entry point; the handshake carries its own token.
	mux.HandleFunc("GET /api/ws", h.ChatWebSocket)

	return &http.Server{
		Addr:    addr,
		Handler: middleware.CheckCORS(mux),
	}
}

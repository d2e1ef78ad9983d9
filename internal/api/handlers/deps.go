package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/atrium-collab/atrium/internal/api/ws"
	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/services"
)

// Handlers holds the initialized services. Everything is injected; no
// package-level state.
type Handlers struct {
	Auth  *services.AuthService
	Chats *services.ChatService
	Hub   *ws.Hub
}

func New(auth *services.AuthService, chats *services.ChatService, hub *ws.Hub) *Handlers {
	return &Handlers{Auth: auth, Chats: chats, Hub: hub}
}

// userFrom pulls the authenticated user id the middleware stored.
func userFrom(r *http.Request) (uint, bool) {
	userID, ok := r.Context().Value("userID").(uint)
	return userID, ok && userID != 0
}

func httpStatus(err error) int {
	switch chaterr.KindOf(err) {
	case chaterr.NotAuthenticated:
		return http.StatusUnauthorized
	case chaterr.PermissionDenied:
		return http.StatusForbidden
	case chaterr.NotFound:
		return http.StatusNotFound
	case chaterr.InvalidArgument:
		return http.StatusBadRequest
	case chaterr.Conflict:
		return http.StatusConflict
	case chaterr.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(err))
	json.NewEncoder(w).Encode(map[string]any{
		"error":  chaterr.KindOf(err),
		"reason": chaterr.ReasonOf(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

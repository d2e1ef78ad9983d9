package handlers

import (
	"encoding/json"
	"net/http"
)

type credentialsBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	access, refresh, user, err := h.Auth.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"User":         user,
		"AccessToken":  access,
		"RefreshToken": refresh,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if body.Name == "" || body.Password == "" {
		http.Error(w, "Name and password are required", http.StatusBadRequest)
		return
	}

	access, refresh, user, err := h.Auth.Login(r.Context(), body.Name, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"User":         user,
		"AccessToken":  access,
		"RefreshToken": refresh,
	})
}

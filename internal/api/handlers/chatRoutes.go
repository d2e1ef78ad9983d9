package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/atrium-collab/atrium/internal/models"
	"github.com/atrium-collab/atrium/internal/repositories"
	"github.com/atrium-collab/atrium/internal/services"
)

func chatIDFrom(r *http.Request) (uint, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

type createChatBody struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

func (h *Handlers) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	var body createChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	cw, err := h.Chats.CreateChat(r.Context(), userID, services.CreateChatInput{
		Kind:        models.ChatKind(body.Kind),
		Name:        body.Name,
		Description: body.Description,
		IsPrivate:   body.IsPrivate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"Chat":     cw.Chat,
		"Settings": cw.Settings,
	})
}

func (h *Handlers) GetChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chats, err := h.Chats.ListChats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Chats": chats})
}

func (h *Handlers) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	cw, err := h.Chats.GetChat(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"Chat":     cw.Chat,
		"Settings": cw.Settings,
		"Seq":      h.Hub.CurrentSeq(chatID),
	})
}

// GetMessages pages history newest first. ?before=<messageID> continues
// an earlier page; ?limit caps the page size.
func (h *Handlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	var beforeID uint
	if beforeParam := r.URL.Query().Get("before"); beforeParam != "" {
		before, err := strconv.Atoi(beforeParam)
		if err != nil || before <= 0 {
			http.Error(w, "Invalid before parameter", http.StatusBadRequest)
			return
		}
		beforeID = uint(before)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.Chats.History(r.Context(), userID, chatID, beforeID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"Messages": messages,
		"Seq":      h.Hub.CurrentSeq(chatID),
	})
}

func (h *Handlers) GetMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	members, err := h.Chats.Members(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Members": members})
}

func (h *Handlers) GetPinned(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	pins, err := h.Chats.Pinned(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Pinned": pins})
}

func (h *Handlers) GetUnreadCounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	counts, err := h.Chats.UnreadCounts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Unread": counts})
}

type settingsBody struct {
	AllowMemberInvites   *bool  `json:"allow_member_invites"`
	AllowMessageEditing  *bool  `json:"allow_message_editing"`
	AllowMessageDeletion *bool  `json:"allow_message_deletion"`
	AllowFileSharing     *bool  `json:"allow_file_sharing"`
	AllowReactions       *bool  `json:"allow_reactions"`
	MaxFileSize          *int64 `json:"max_file_size"`
	MaxMessageLength     *int   `json:"max_message_length"`
	SlowModeInterval     *int   `json:"slow_mode_interval"`
	AutoDeleteAfterDays  *int   `json:"auto_delete_after_days"`
}

// UpdateSettings goes through the hub so the change serializes with
// in-flight chat commands and fans out to subscribers.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	var body settingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	settings, err := h.Hub.UpdateSettings(r.Context(), userID, chatID, repositories.SettingsPatch{
		AllowMemberInvites:   body.AllowMemberInvites,
		AllowMessageEditing:  body.AllowMessageEditing,
		AllowMessageDeletion: body.AllowMessageDeletion,
		AllowFileSharing:     body.AllowFileSharing,
		AllowReactions:       body.AllowReactions,
		MaxFileSize:          body.MaxFileSize,
		MaxMessageLength:     body.MaxMessageLength,
		SlowModeInterval:     body.SlowModeInterval,
		AutoDeleteAfterDays:  body.AutoDeleteAfterDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Settings": settings})
}

type memberBody struct {
	UserId uint   `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	var body memberBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserId == 0 {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	member, err := h.Hub.AddMember(r.Context(), userID, chatID, body.UserId, models.MemberRole(body.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"Member": member})
}

func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	target, err := strconv.Atoi(r.PathValue("userID"))
	if err != nil || target <= 0 {
		http.Error(w, "Please provide a valid user ID", http.StatusBadRequest)
		return
	}
	if err := h.Hub.RemoveMember(r.Context(), userID, chatID, uint(target)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Status": "removed"})
}

func (h *Handlers) LeaveChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	if err := h.Hub.LeaveChat(r.Context(), userID, chatID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Status": "left"})
}

func (h *Handlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	var body memberBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserId == 0 {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	role := models.MemberRole(body.Role)
	if !role.Valid() {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}
	member, err := h.Hub.ChangeRole(r.Context(), userID, chatID, body.UserId, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Member": member})
}

type readBody struct {
	MessageId uint `json:"message_id"`
}

func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		http.Error(w, "Unauthorized: missing or invalid user ID", http.StatusUnauthorized)
		return
	}
	chatID, ok := chatIDFrom(r)
	if !ok {
		http.Error(w, "Please provide a valid ID", http.StatusBadRequest)
		return
	}
	var body readBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MessageId == 0 {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.Hub.MarkRead(r.Context(), userID, chatID, body.MessageId); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"Status": "read"})
}

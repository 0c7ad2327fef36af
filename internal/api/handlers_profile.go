package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/meetscribe/meetscribe/server/internal/api/respond"
	"github.com/meetscribe/meetscribe/server/internal/api/validate"
	"github.com/meetscribe/meetscribe/server/internal/model"
)

// UpsertProfile PUT /api/profiles
// Callers manage their own directory entry; admins may write any entry.
func (h *MeetingHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID            string `json:"userId"`
		Email             string `json:"email"`
		DisplayName       string `json:"displayName"`
		PreferredLanguage string `json:"preferredLanguage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.UserID == "" {
		req.UserID = actor.ActorID
	}
	if !actor.Admin && req.UserID != actor.ActorID {
		respond.WriteError(w, http.StatusForbidden, "cannot edit another user's profile")
		return
	}
	if err := validate.Profile(req.UserID, req.Email, req.DisplayName); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	out, err := h.dir.UpsertProfile(r.Context(), &model.Profile{
		UserID:            req.UserID,
		Email:             req.Email,
		DisplayName:       req.DisplayName,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// GetProfile GET /api/profiles/{userId}
func (h *MeetingHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	out, err := h.dir.GetProfile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

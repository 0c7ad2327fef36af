package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	respond "github.com/meetscribe/meetscribe/server/internal/api/respond"
	"github.com/meetscribe/meetscribe/server/internal/api/validate"
	"github.com/meetscribe/meetscribe/server/internal/auth"
	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/services"
)

// MeetingHandler is a thin HTTP transport over MeetingService.
type MeetingHandler struct {
	svc        *services.MeetingService
	dir        *services.DirectoryService
	authorizer auth.Authorizer
}

func NewMeetingHandler(svc *services.MeetingService, dir *services.DirectoryService, authorizer auth.Authorizer) *MeetingHandler {
	return &MeetingHandler{svc: svc, dir: dir, authorizer: authorizer}
}

// actor authenticates the request inline. On failure it writes a 401 and
// returns false.
func (h *MeetingHandler) actor(w http.ResponseWriter, r *http.Request) (*auth.ActorInfo, bool) {
	apiKey, err := auth.ExtractAPIKey(r)
	if err != nil {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
		return nil, false
	}
	actorInfo, err := h.authorizer.Authorize(r.Context(), apiKey)
	if err != nil {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
		return nil, false
	}
	return actorInfo, true
}

// CreateMeeting POST /api/meetings
// A body with scheduledFor creates a scheduled meeting, otherwise the
// meeting is live immediately.
func (h *MeetingHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req services.CreateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Title(req.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	var (
		out *model.Meeting
		err error
	)
	if req.ScheduledFor != nil {
		out, err = h.svc.ScheduleMeeting(r.Context(), actor, req)
	} else {
		out, err = h.svc.CreateMeeting(r.Context(), actor, req)
	}
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetMeeting GET /api/meetings/{meetingId}
func (h *MeetingHandler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	out, err := h.svc.GetMeeting(r.Context(), mux.Vars(r)["meetingId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// ListMeetings GET /api/meetings?phase=&deleted=&limit=
// Non-admin callers see only meetings they participate in.
func (h *MeetingHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req := model.ListMeetingsRequest{UserID: actor.ActorID}
	if actor.Admin {
		req.UserID = ""
		if r.URL.Query().Get("deleted") == "true" {
			req.Deleted = true
		}
	}
	if p := r.URL.Query().Get("phase"); p != "" {
		req.Phase = model.Phase(p)
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			respond.WriteBadRequest(w, "invalid limit")
			return
		}
		req.Limit = n
	}

	out, err := h.svc.ListMeetings(r.Context(), req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if out == nil {
		out = []*model.Meeting{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"meetings": out, "count": len(out)})
}

// StartMeeting POST /api/meetings/{meetingId}/start
func (h *MeetingHandler) StartMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.StartMeeting(r.Context(), actor, mux.Vars(r)["meetingId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndMeeting POST /api/meetings/{meetingId}/end
func (h *MeetingHandler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.EndMeeting(r.Context(), actor, mux.Vars(r)["meetingId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JoinMeeting POST /api/meetings/join
func (h *MeetingHandler) JoinMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("code", req.Code); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.Join(r.Context(), actor, req.Code)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// ListParticipants GET /api/meetings/{meetingId}/participants
// Returns resolved display records; unknown users get placeholder names.
func (h *MeetingHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	m, err := h.svc.GetMeeting(r.Context(), mux.Vars(r)["meetingId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	parts, err := h.dir.ResolveParticipants(r.Context(), m)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"participants": parts, "count": len(parts)})
}

// SetMute PUT /api/meetings/{meetingId}/participants/{userId}/mute
func (h *MeetingHandler) SetMute(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	vars := mux.Vars(r)
	if err := h.svc.SetMuted(r.Context(), actor, vars["meetingId"], vars["userId"], req.Muted); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveParticipant DELETE /api/meetings/{meetingId}/participants/{userId}
func (h *MeetingHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.svc.RemoveParticipant(r.Context(), actor, vars["meetingId"], vars["userId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetLanguage PUT /api/meetings/{meetingId}/language
func (h *MeetingHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Language(req.Language); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.svc.SetLanguage(r.Context(), actor, mux.Vars(r)["meetingId"], req.Language); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summarize POST /api/meetings/{meetingId}/summarize
func (h *MeetingHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Summarize(r.Context(), actor, mux.Vars(r)["meetingId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateSummaryOverview PATCH /api/meetings/{meetingId}/summary
func (h *MeetingHandler) UpdateSummaryOverview(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Overview string `json:"overview"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.svc.UpdateSummaryOverview(r.Context(), actor, mux.Vars(r)["meetingId"], req.Overview); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveMeeting POST /api/meetings/{meetingId}/archive
func (h *MeetingHandler) ArchiveMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Archive(r.Context(), actor, mux.Vars(r)["meetingId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreMeeting POST /api/meetings/{meetingId}/restore
func (h *MeetingHandler) RestoreMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Restore(r.Context(), actor, mux.Vars(r)["meetingId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeMeeting DELETE /api/meetings/{meetingId}
func (h *MeetingHandler) PurgeMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Purge(r.Context(), actor, mux.Vars(r)["meetingId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

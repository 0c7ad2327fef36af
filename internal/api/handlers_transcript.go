package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/meetscribe/meetscribe/server/internal/api/respond"
	"github.com/meetscribe/meetscribe/server/internal/api/validate"
	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/services"
)

// AppendSegment POST /api/meetings/{meetingId}/segments
// The speaker identity is the authenticated actor; the store rejects the
// append if the meeting is not active or the actor is muted.
func (h *MeetingHandler) AppendSegment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req services.AppendSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.SegmentText(req.Text); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.AppendSegment(r.Context(), actor, mux.Vars(r)["meetingId"], req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// ListTranscript GET /api/meetings/{meetingId}/segments
// Segments come back in server-assigned order, which is the authoritative
// transcript order regardless of client clocks.
func (h *MeetingHandler) ListTranscript(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	out, err := h.svc.ListTranscript(r.Context(), mux.Vars(r)["meetingId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if out == nil {
		out = []*model.TranscriptSegment{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"segments": out, "count": len(out)})
}

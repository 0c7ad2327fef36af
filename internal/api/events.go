package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/meetscribe/meetscribe/server/internal/api/respond"
)

// StreamEvents GET /api/meetings/{meetingId}/events
// Bridges the in-process livefeed to the client as Server-Sent Events. The
// stream carries change notifications only; a client that falls behind and
// has events dropped re-reads the transcript to catch up.
func (h *MeetingHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.WriteInternalError(w, "streaming unsupported")
		return
	}

	sub, err := h.svc.Watch(r.Context(), mux.Vars(r)["meetingId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
			flusher.Flush()
		}
	}
}

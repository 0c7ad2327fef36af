package api

import (
	"github.com/gorilla/mux"

	"github.com/meetscribe/meetscribe/server/internal/api/recovery"
	"github.com/meetscribe/meetscribe/server/internal/auth"
	"github.com/meetscribe/meetscribe/server/internal/services"
)

// NewRouter wires every API route. Handlers authenticate inline via the
// authorizer; there is no auth middleware.
func NewRouter(meetings *services.MeetingService, dir *services.DirectoryService, authorizer auth.Authorizer) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	h := NewMeetingHandler(meetings, dir, authorizer)
	healthHandler := NewHealthHandler()

	// Health
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// Meeting lifecycle
	router.HandleFunc("/api/meetings", h.CreateMeeting).Methods("POST")
	router.HandleFunc("/api/meetings", h.ListMeetings).Methods("GET")
	router.HandleFunc("/api/meetings/join", h.JoinMeeting).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}", h.GetMeeting).Methods("GET")
	router.HandleFunc("/api/meetings/{meetingId}", h.PurgeMeeting).Methods("DELETE")
	router.HandleFunc("/api/meetings/{meetingId}/start", h.StartMeeting).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}/end", h.EndMeeting).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}/archive", h.ArchiveMeeting).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}/restore", h.RestoreMeeting).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}/language", h.SetLanguage).Methods("PUT")

	// Transcript
	router.HandleFunc("/api/meetings/{meetingId}/segments", h.AppendSegment).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}/segments", h.ListTranscript).Methods("GET")

	// Participants
	router.HandleFunc("/api/meetings/{meetingId}/participants", h.ListParticipants).Methods("GET")
	router.HandleFunc("/api/meetings/{meetingId}/participants/{userId}/mute", h.SetMute).Methods("PUT")
	router.HandleFunc("/api/meetings/{meetingId}/participants/{userId}", h.RemoveParticipant).Methods("DELETE")

	// Summarization
	router.HandleFunc("/api/meetings/{meetingId}/summarize", h.Summarize).Methods("POST")
	router.HandleFunc("/api/meetings/{meetingId}/summary", h.UpdateSummaryOverview).Methods("PATCH")

	// Live events (SSE)
	router.HandleFunc("/api/meetings/{meetingId}/events", h.StreamEvents).Methods("GET")

	// Directory
	router.HandleFunc("/api/profiles", h.UpsertProfile).Methods("PUT")
	router.HandleFunc("/api/profiles/{userId}", h.GetProfile).Methods("GET")

	return router
}

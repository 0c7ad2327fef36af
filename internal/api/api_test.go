package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/meetscribe/server/internal/auth"
	"github.com/meetscribe/meetscribe/server/internal/livefeed"
	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/services"
	"github.com/meetscribe/meetscribe/server/internal/store/memory"
	"github.com/meetscribe/meetscribe/server/internal/summarizer"
)

const (
	hostToken  = "tok-host"
	guestToken = "tok-guest"
	adminToken = "tok-admin"
)

type testServer struct {
	*httptest.Server
	sumCalls *atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	var sumCalls atomic.Int32
	sumSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sumCalls.Add(1)
		var req struct {
			Transcript string `json:"transcript"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"overview":  "Discussed the launch.",
			"keyPoints": []string{"transcript lines: " + fmt.Sprint(len(strings.Split(req.Transcript, "\n")))},
			"speakerContributions": []map[string]string{
				{"speaker": "Hana Host", "contribution": "led the discussion"},
			},
		})
	}))
	t.Cleanup(sumSrv.Close)

	st := memory.New()
	feed := livefeed.NewHub(32, zerolog.Nop())
	sum := summarizer.NewHTTPClient(sumSrv.URL, "test-model", 5*time.Second)
	meetings := services.NewMeetingService(st, feed, sum, zerolog.Nop())
	dir := services.NewDirectoryService(st)

	authorizer := auth.NewStaticAuthorizer(map[string]auth.ActorInfo{
		hostToken:  {ActorID: "host-1", DisplayName: "Hana Host"},
		guestToken: {ActorID: "guest-1", DisplayName: "Gus Guest"},
		adminToken: {ActorID: "admin-1", DisplayName: "Ada Admin", Admin: true},
	})

	srv := httptest.NewServer(NewRouter(meetings, dir, authorizer))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, sumCalls: &sumCalls}
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func createMeeting(t *testing.T, srv *testServer) model.Meeting {
	t.Helper()
	resp, body := doJSON(t, "POST", srv.URL+"/api/meetings", hostToken, map[string]string{"title": "Launch Review"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var m model.Meeting
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/meetings", "", map[string]string{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings", "bogus-token", map[string]string{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeetingLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	m := createMeeting(t, srv)
	require.Equal(t, model.PhaseActive, m.Phase())
	require.NotEmpty(t, m.ShareCode)

	// Guest joins with the share code.
	resp, body := doJSON(t, "POST", srv.URL+"/api/meetings/join", guestToken, map[string]string{"code": m.ShareCode})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var joined model.Meeting
	require.NoError(t, json.Unmarshal(body, &joined))
	require.True(t, joined.HasParticipant("guest-1"))

	// Guest speaks.
	resp, body = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/segments", guestToken,
		map[string]any{"text": "shipping on friday", "timestamp": time.Now().UnixMilli()})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var seg model.TranscriptSegment
	require.NoError(t, json.Unmarshal(body, &seg))
	require.Equal(t, "guest-1", seg.SpeakerID)
	require.Equal(t, int64(1), seg.Seq)

	// Transcript comes back in store order.
	resp, body = doJSON(t, "GET", srv.URL+"/api/meetings/"+m.MeetingID+"/segments", hostToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Segments []model.TranscriptSegment `json:"segments"`
		Count    int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Equal(t, 1, listed.Count)

	// Only the host may end the meeting.
	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/end", guestToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/end", hostToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Appending after the end conflicts.
	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/segments", guestToken,
		map[string]any{"text": "too late"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Ending twice stays a no-op.
	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/end", hostToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSummarizeOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	m := createMeeting(t, srv)

	// Empty transcript is refused before any summarizer call.
	resp, _ := doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/summarize", hostToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, int32(0), srv.sumCalls.Load())

	for _, text := range []string{"welcome everyone", "the budget is approved"} {
		resp, body := doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/segments", hostToken,
			map[string]any{"text": text})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	}

	resp, body := doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/summarize", hostToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.Equal(t, int32(1), srv.sumCalls.Load())
	var sum model.Summary
	require.NoError(t, json.Unmarshal(body, &sum))
	require.Equal(t, "Discussed the launch.", sum.Overview)

	// The stored meeting carries the summary.
	resp, body = doJSON(t, "GET", srv.URL+"/api/meetings/"+m.MeetingID, hostToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Meeting
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotNil(t, got.Summary)
	require.Equal(t, "Discussed the launch.", got.Summary.Overview)

	// Admin hand-edits the overview without re-summarizing.
	resp, _ = doJSON(t, "PATCH", srv.URL+"/api/meetings/"+m.MeetingID+"/summary", adminToken,
		map[string]string{"overview": "Edited by admin"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, int32(1), srv.sumCalls.Load())

	// Non-admin cannot.
	resp, _ = doJSON(t, "PATCH", srv.URL+"/api/meetings/"+m.MeetingID+"/summary", hostToken,
		map[string]string{"overview": "nope"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestParticipantsAndPlaceholders(t *testing.T) {
	srv := newTestServer(t)
	m := createMeeting(t, srv)

	// Host registers a profile; guest stays unresolved.
	resp, _ := doJSON(t, "PUT", srv.URL+"/api/profiles", hostToken,
		map[string]string{"email": "hana@example.com", "displayName": "Hana Host"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/join", guestToken, map[string]string{"code": m.ShareCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, "GET", srv.URL+"/api/meetings/"+m.MeetingID+"/participants", hostToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Participants []model.Participant `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Participants, 2)
	byID := map[string]model.Participant{}
	for _, p := range listed.Participants {
		byID[p.UserID] = p
	}
	require.Equal(t, "Hana Host", byID["host-1"].DisplayName)
	require.False(t, byID["host-1"].Placeholder)
	require.True(t, byID["guest-1"].Placeholder)
	require.Equal(t, "User guest-", byID["guest-1"].DisplayName)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, "GET", srv.URL+"/api/meetings/no-such-meeting", hostToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings", hostToken, map[string]string{"title": "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	m := createMeeting(t, srv)
	// Archiving an active meeting conflicts, and requires admin.
	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/archive", hostToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, "POST", srv.URL+"/api/meetings/"+m.MeetingID+"/archive", adminToken, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEventStreamDeliversAppends(t *testing.T) {
	srv := newTestServer(t)
	m := createMeeting(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/meetings/"+m.MeetingID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+guestToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the subscription a moment to attach, then speak.
	time.Sleep(50 * time.Millisecond)
	go func() {
		body := strings.NewReader(`{"text":"hello stream"}`)
		req, _ := http.NewRequest("POST", srv.URL+"/api/meetings/"+m.MeetingID+"/segments", body)
		req.Header.Set("Authorization", "Bearer "+hostToken)
		req.Header.Set("Content-Type", "application/json")
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	var sawEvent, sawData bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: segment_appended" {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data: ") {
			var evt livefeed.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt))
			require.NotNil(t, evt.Segment)
			require.Equal(t, "hello stream", evt.Segment.Text)
			sawData = true
			break
		}
	}
	require.True(t, sawData, "segment event not observed on SSE stream")
}

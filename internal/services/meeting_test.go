package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetscribe/meetscribe/server/internal/auth"
	"github.com/meetscribe/meetscribe/server/internal/livefeed"
	"github.com/meetscribe/meetscribe/server/internal/meetingcode"
	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store/memory"
	"github.com/meetscribe/meetscribe/server/internal/summarizer"
)

type fakeSummarizer struct {
	calls   int
	lastReq summarizer.Request
	result  *model.Summary
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req summarizer.Request) (*model.Summary, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

var (
	host  = &auth.ActorInfo{ActorID: "host-1", DisplayName: "Hana Host"}
	guest = &auth.ActorInfo{ActorID: "guest-1", DisplayName: "Gus Guest"}
	admin = &auth.ActorInfo{ActorID: "admin-1", DisplayName: "Ada Admin", Admin: true}
)

func newTestService(t *testing.T) (*MeetingService, *fakeSummarizer) {
	t.Helper()
	sum := &fakeSummarizer{result: &model.Summary{Overview: "stub", GeneratedAt: time.Now()}}
	feed := livefeed.NewHub(16, zerolog.Nop())
	return NewMeetingService(memory.New(), feed, sum, zerolog.Nop()), sum
}

func mustCreate(t *testing.T, svc *MeetingService) *model.Meeting {
	t.Helper()
	m, err := svc.CreateMeeting(context.Background(), host, CreateMeetingRequest{Title: "Standup"})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	return m
}

func TestCreateMeeting(t *testing.T) {
	svc, _ := newTestService(t)
	m := mustCreate(t, svc)

	if m.Phase() != model.PhaseActive {
		t.Fatalf("expected active phase, got %s", m.Phase())
	}
	if !meetingcode.Valid(m.ShareCode) {
		t.Fatalf("invalid share code %q", m.ShareCode)
	}
	if len(m.Participants) != 1 || m.Participants[0] != host.ActorID {
		t.Fatalf("unexpected participants %v", m.Participants)
	}

	if _, err := svc.CreateMeeting(context.Background(), host, CreateMeetingRequest{Title: "  "}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty title, got %v", err)
	}
	if _, err := svc.CreateMeeting(context.Background(), host, CreateMeetingRequest{Title: "x", Language: "not a tag!"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad language, got %v", err)
	}
}

func TestScheduleMeetingRequiresTime(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ScheduleMeeting(context.Background(), host, CreateMeetingRequest{Title: "Planning"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	at := time.Now().Add(time.Hour)
	m, err := svc.ScheduleMeeting(context.Background(), host, CreateMeetingRequest{Title: "Planning", ScheduledFor: &at})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if m.Phase() != model.PhaseScheduled {
		t.Fatalf("expected scheduled phase, got %s", m.Phase())
	}
}

func TestJoinByShareCode(t *testing.T) {
	svc, _ := newTestService(t)
	m := mustCreate(t, svc)

	// Sloppy user input still resolves.
	joined, err := svc.Join(context.Background(), guest, " "+m.ShareCode[:4]+m.ShareCode[5:]+" ")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !joined.HasParticipant(guest.ActorID) {
		t.Fatalf("guest not in participants: %v", joined.Participants)
	}

	// Joining twice is harmless.
	if _, err := svc.Join(context.Background(), guest, m.MeetingID); err != nil {
		t.Fatalf("re-join: %v", err)
	}
}

func TestJoinPhaseRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	scheduled, err := svc.ScheduleMeeting(ctx, host, CreateMeetingRequest{Title: "Later", ScheduledFor: &future})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := svc.Join(ctx, guest, scheduled.MeetingID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict joining future meeting, got %v", err)
	}

	past := time.Now().Add(-time.Minute)
	due, err := svc.ScheduleMeeting(ctx, host, CreateMeetingRequest{Title: "Now", ScheduledFor: &past})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	joined, err := svc.Join(ctx, guest, due.MeetingID)
	if err != nil {
		t.Fatalf("join past-due: %v", err)
	}
	if joined.Phase() != model.PhaseActive {
		t.Fatalf("past-due join should auto-start, phase %s", joined.Phase())
	}

	ended := mustCreate(t, svc)
	if err := svc.EndMeeting(ctx, host, ended.MeetingID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.Join(ctx, guest, ended.MeetingID); !errors.Is(err, model.ErrMeetingEnded) {
		t.Fatalf("expected ErrMeetingEnded, got %v", err)
	}
}

func TestEndMeetingHostOnlyAndIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)
	if _, err := svc.Join(ctx, guest, m.MeetingID); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.EndMeeting(ctx, guest, m.MeetingID); !errors.Is(err, model.ErrPermission) {
		t.Fatalf("expected ErrPermission for guest end, got %v", err)
	}
	if err := svc.EndMeeting(ctx, host, m.MeetingID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := svc.EndMeeting(ctx, host, m.MeetingID); err != nil {
		t.Fatalf("second end should be a no-op, got %v", err)
	}
}

func TestAppendSegmentGuards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)
	if _, err := svc.Join(ctx, guest, m.MeetingID); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := svc.AppendSegment(ctx, guest, m.MeetingID, AppendSegmentRequest{Text: "   "}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank text, got %v", err)
	}

	seg, err := svc.AppendSegment(ctx, guest, m.MeetingID, AppendSegmentRequest{Text: "  hello there  "})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seg.Text != "hello there" {
		t.Fatalf("text not trimmed: %q", seg.Text)
	}
	if seg.SpeakerID != guest.ActorID || seg.SpeakerName != guest.DisplayName {
		t.Fatalf("unexpected speaker attribution: %+v", seg)
	}

	if err := svc.SetMuted(ctx, host, m.MeetingID, guest.ActorID, true); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if _, err := svc.AppendSegment(ctx, guest, m.MeetingID, AppendSegmentRequest{Text: "still here"}); !errors.Is(err, model.ErrMuted) {
		t.Fatalf("expected ErrMuted, got %v", err)
	}
}

func TestWatchReceivesAppendEvents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)

	sub, err := svc.Watch(ctx, m.MeetingID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer sub.Close()

	if _, err := svc.AppendSegment(ctx, host, m.MeetingID, AppendSegmentRequest{Text: "first line"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case evt := <-sub.C:
		if evt.Kind != livefeed.EventSegmentAppended || evt.Segment == nil || evt.Segment.Text != "first line" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestMuteAndRemovePermissions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)
	if _, err := svc.Join(ctx, guest, m.MeetingID); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.SetMuted(ctx, guest, m.MeetingID, host.ActorID, true); !errors.Is(err, model.ErrPermission) {
		t.Fatalf("expected ErrPermission for guest mute, got %v", err)
	}
	if err := svc.RemoveParticipant(ctx, guest, m.MeetingID, host.ActorID); !errors.Is(err, model.ErrPermission) {
		t.Fatalf("expected ErrPermission for guest remove, got %v", err)
	}
	if err := svc.RemoveParticipant(ctx, host, m.MeetingID, host.ActorID); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("host removal should fail validation, got %v", err)
	}

	// Removing a muted guest clears the mute, so history survives but the
	// mute does not follow a re-join.
	if err := svc.SetMuted(ctx, host, m.MeetingID, guest.ActorID, true); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if err := svc.RemoveParticipant(ctx, host, m.MeetingID, guest.ActorID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	after, err := svc.GetMeeting(ctx, m.MeetingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.HasParticipant(guest.ActorID) || after.IsMuted(guest.ActorID) {
		t.Fatalf("guest still present or muted: %+v", after)
	}
}

func TestSummarizeEmptyTranscriptRefusedLocally(t *testing.T) {
	svc, sum := newTestService(t)
	m := mustCreate(t, svc)

	_, err := svc.Summarize(context.Background(), host, m.MeetingID)
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if sum.calls != 0 {
		t.Fatalf("summarizer called %d times for empty transcript", sum.calls)
	}
}

func TestSummarizeReplacesWholesale(t *testing.T) {
	svc, sum := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)
	if _, err := svc.AppendSegment(ctx, host, m.MeetingID, AppendSegmentRequest{Text: "budget is approved"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	sum.result = &model.Summary{
		Overview:  "v1",
		KeyPoints: []string{"a", "b"},
	}
	if _, err := svc.Summarize(ctx, host, m.MeetingID); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.lastReq.Lines[0].Speaker != host.DisplayName {
		t.Fatalf("speaker label missing: %+v", sum.lastReq.Lines)
	}

	sum.result = &model.Summary{Overview: "v2"}
	if _, err := svc.Summarize(ctx, host, m.MeetingID); err != nil {
		t.Fatalf("re-summarize: %v", err)
	}
	after, err := svc.GetMeeting(ctx, m.MeetingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Summary.Overview != "v2" || len(after.Summary.KeyPoints) != 0 {
		t.Fatalf("summary was merged, not replaced: %+v", after.Summary)
	}

	// Failed run leaves the stored summary untouched.
	sum.err = errors.New("model overloaded")
	if _, err := svc.Summarize(ctx, host, m.MeetingID); err == nil {
		t.Fatal("expected error from failing summarizer")
	}
	after, _ = svc.GetMeeting(ctx, m.MeetingID)
	if after.Summary.Overview != "v2" {
		t.Fatalf("failed run altered summary: %+v", after.Summary)
	}
}

func TestUpdateSummaryOverviewAdminOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)
	if _, err := svc.AppendSegment(ctx, host, m.MeetingID, AppendSegmentRequest{Text: "notes"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := svc.Summarize(ctx, host, m.MeetingID); err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if err := svc.UpdateSummaryOverview(ctx, host, m.MeetingID, "edited"); !errors.Is(err, model.ErrPermission) {
		t.Fatalf("expected ErrPermission for non-admin, got %v", err)
	}
	if err := svc.UpdateSummaryOverview(ctx, admin, m.MeetingID, "edited"); err != nil {
		t.Fatalf("admin edit: %v", err)
	}
	after, _ := svc.GetMeeting(ctx, m.MeetingID)
	if after.Summary.Overview != "edited" {
		t.Fatalf("overview not updated: %+v", after.Summary)
	}
}

func TestArchiveRestorePurgeAdminFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m := mustCreate(t, svc)

	if err := svc.Archive(ctx, host, m.MeetingID); !errors.Is(err, model.ErrPermission) {
		t.Fatalf("expected ErrPermission for non-admin archive, got %v", err)
	}
	if err := svc.Archive(ctx, admin, m.MeetingID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict archiving active meeting, got %v", err)
	}

	if err := svc.EndMeeting(ctx, host, m.MeetingID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := svc.Archive(ctx, admin, m.MeetingID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := svc.Restore(ctx, admin, m.MeetingID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := svc.Purge(ctx, admin, m.MeetingID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("purge of non-archived should conflict, got %v", err)
	}
	if err := svc.Archive(ctx, admin, m.MeetingID); err != nil {
		t.Fatalf("re-archive: %v", err)
	}
	if err := svc.Purge(ctx, admin, m.MeetingID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := svc.GetMeeting(ctx, m.MeetingID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
}

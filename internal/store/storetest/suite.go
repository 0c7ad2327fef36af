// Package storetest holds the compliance suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// makeStore must provide a clean, isolated store per call.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("MeetingLifecycle", func(t *testing.T) { testMeetingLifecycle(t, makeStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, makeStore(t)) })
	t.Run("ConcurrentJoins", func(t *testing.T) { testConcurrentJoins(t, makeStore(t)) })
	t.Run("SegmentImmutability", func(t *testing.T) { testSegmentImmutability(t, makeStore(t)) })
	t.Run("AppendGuards", func(t *testing.T) { testAppendGuards(t, makeStore(t)) })
	t.Run("SummaryReplace", func(t *testing.T) { testSummaryReplace(t, makeStore(t)) })
	t.Run("ArchiveRestorePurge", func(t *testing.T) { testArchiveRestorePurge(t, makeStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, makeStore(t)) })
}

func newMeeting(host string, active bool) *model.Meeting {
	return &model.Meeting{
		MeetingID: uuid.New().String(),
		Title:     "standup",
		ShareCode: shareCodeForTest(),
		CreatedBy: host,
		IsActive:  active,
	}
}

// shareCodeForTest avoids pulling the meetingcode package into the suite.
func shareCodeForTest() string {
	u := uuid.New().String()
	return "T" + u[:7]
}

func testMeetingLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	in := newMeeting("host-1", false)
	in.IsScheduled = true
	at := time.Now().Add(time.Hour).UTC()
	in.ScheduledFor = &at

	created, err := s.Meetings().Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.HasParticipant("host-1") {
		t.Fatalf("creator missing from participants: %+v", created.Participants)
	}
	if created.Phase() != model.PhaseScheduled {
		t.Fatalf("phase = %s, want scheduled", created.Phase())
	}

	if got, err := s.Meetings().GetByShareCode(ctx, in.ShareCode); err != nil || got.MeetingID != in.MeetingID {
		t.Fatalf("GetByShareCode: got=%v err=%v", got, err)
	}

	if err := s.Meetings().Start(ctx, in.MeetingID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// starting an active meeting is a no-op
	if err := s.Meetings().Start(ctx, in.MeetingID); err != nil {
		t.Fatalf("Start twice: %v", err)
	}
	got, err := s.Meetings().Get(ctx, in.MeetingID)
	if err != nil || got.Phase() != model.PhaseActive {
		t.Fatalf("after Start: phase=%v err=%v", got.Phase(), err)
	}
	if got.IsScheduled {
		t.Fatal("isScheduled must clear when the meeting activates")
	}

	// P3: End is idempotent.
	if err := s.Meetings().End(ctx, in.MeetingID, time.Now()); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := s.Meetings().End(ctx, in.MeetingID, time.Now()); err != nil {
		t.Fatalf("End twice must be a no-op, got: %v", err)
	}
	got, err = s.Meetings().Get(ctx, in.MeetingID)
	if err != nil || got.IsActive || got.IsScheduled {
		t.Fatalf("after End: %+v err=%v", got, err)
	}
	if got.EndedTime == nil {
		t.Fatal("EndedTime not recorded")
	}

	// an ended meeting cannot be restarted
	if err := s.Meetings().Start(ctx, in.MeetingID); !errors.Is(err, model.ErrMeetingEnded) {
		t.Fatalf("Start after End: err=%v, want ErrMeetingEnded", err)
	}
}

// testConcurrentAppends drives P1: N concurrent appends from distinct
// writers land exactly N segments, none lost or duplicated.
func testConcurrentAppends(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMeeting("host-1", true)
	if _, err := s.Meetings().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const writers = 8
	const perWriter = 10
	for i := 0; i < writers; i++ {
		if err := s.Meetings().AddParticipant(ctx, m.MeetingID, fmt.Sprintf("u-%d", i)); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, writers*perWriter)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := s.Segments().Append(ctx, &model.TranscriptSegment{
					SegmentID:   uuid.New().String(),
					MeetingID:   m.MeetingID,
					SpeakerID:   fmt.Sprintf("u-%d", writer),
					SpeakerName: fmt.Sprintf("User %d", writer),
					Text:        fmt.Sprintf("line %d from %d", j, writer),
					Timestamp:   time.Now().UnixMilli(),
				})
				if err != nil {
					errCh <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("Append: %v", err)
	}

	segs, err := s.Segments().List(ctx, m.MeetingID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(segs) != writers*perWriter {
		t.Fatalf("segment count = %d, want %d", len(segs), writers*perWriter)
	}
	seen := make(map[string]bool, len(segs))
	var prev int64
	for i, seg := range segs {
		if seen[seg.SegmentID] {
			t.Fatalf("duplicate segment id %s", seg.SegmentID)
		}
		seen[seg.SegmentID] = true
		if i > 0 && seg.Seq <= prev {
			t.Fatalf("store order not strictly increasing: seq[%d]=%d after %d", i, seg.Seq, prev)
		}
		prev = seg.Seq
	}
}

// testConcurrentJoins drives P4: concurrent joiners all land in the set.
func testConcurrentJoins(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMeeting("host-1", true)
	if _, err := s.Meetings().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const joiners = 16
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Meetings().AddParticipant(ctx, m.MeetingID, fmt.Sprintf("joiner-%d", n)); err != nil {
				t.Errorf("AddParticipant: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Meetings().Get(ctx, m.MeetingID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for i := 0; i < joiners; i++ {
		if !got.HasParticipant(fmt.Sprintf("joiner-%d", i)) {
			t.Fatalf("joiner-%d lost from participant set", i)
		}
	}
	if !got.HasParticipant("host-1") {
		t.Fatal("host lost from participant set")
	}
}

// testSegmentImmutability drives P5: listed segments are copies; mutating
// them does not affect the stored transcript.
func testSegmentImmutability(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMeeting("host-1", true)
	if _, err := s.Meetings().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	orig, err := s.Segments().Append(ctx, &model.TranscriptSegment{
		SegmentID:   uuid.New().String(),
		MeetingID:   m.MeetingID,
		SpeakerID:   "host-1",
		SpeakerName: "Host",
		Text:        "we need the report by Friday",
		Timestamp:   time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	segs, err := s.Segments().List(ctx, m.MeetingID)
	if err != nil || len(segs) != 1 {
		t.Fatalf("List: n=%d err=%v", len(segs), err)
	}
	segs[0].Text = "tampered"
	segs[0].SpeakerID = "intruder"

	again, err := s.Segments().List(ctx, m.MeetingID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if again[0].Text != "we need the report by Friday" || again[0].SpeakerID != "host-1" || again[0].SegmentID != orig.SegmentID {
		t.Fatalf("stored segment mutated: %+v", again[0])
	}
}

func testAppendGuards(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMeeting("host-1", true)
	if _, err := s.Meetings().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Meetings().AddParticipant(ctx, m.MeetingID, "u-2"); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}

	seg := func(speaker string) *model.TranscriptSegment {
		return &model.TranscriptSegment{
			SegmentID:   uuid.New().String(),
			MeetingID:   m.MeetingID,
			SpeakerID:   speaker,
			SpeakerName: speaker,
			Text:        "hello",
			Timestamp:   time.Now().UnixMilli(),
		}
	}

	// non-participant
	if _, err := s.Segments().Append(ctx, seg("stranger")); !errors.Is(err, model.ErrPermission) {
		t.Fatalf("append by non-participant: err=%v, want ErrPermission", err)
	}

	// muted speaker
	if err := s.Meetings().SetMuted(ctx, m.MeetingID, "u-2", true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	if _, err := s.Segments().Append(ctx, seg("u-2")); !errors.Is(err, model.ErrMuted) {
		t.Fatalf("append while muted: err=%v, want ErrMuted", err)
	}
	if err := s.Meetings().SetMuted(ctx, m.MeetingID, "u-2", false); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if _, err := s.Segments().Append(ctx, seg("u-2")); err != nil {
		t.Fatalf("append after unmute: %v", err)
	}

	// ended meeting
	if err := s.Meetings().End(ctx, m.MeetingID, time.Now()); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := s.Segments().Append(ctx, seg("u-2")); !errors.Is(err, model.ErrMeetingEnded) {
		t.Fatalf("append after end: err=%v, want ErrMeetingEnded", err)
	}
	// history survives the guards
	segs, err := s.Segments().List(ctx, m.MeetingID)
	if err != nil || len(segs) != 1 {
		t.Fatalf("transcript after end: n=%d err=%v", len(segs), err)
	}
}

// testSummaryReplace drives P6: the second write wholly replaces the first.
func testSummaryReplace(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMeeting("host-1", true)
	if _, err := s.Meetings().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := &model.Summary{
		Overview:    "first pass",
		KeyPoints:   []string{"alpha", "beta"},
		ActionItems: []string{"ship it"},
		Decisions:   []string{"go"},
		SpeakerContributions: []model.SpeakerContribution{
			{Speaker: "A", Contribution: "led the discussion"},
		},
	}
	if err := s.Meetings().ReplaceSummary(ctx, m.MeetingID, first); err != nil {
		t.Fatalf("ReplaceSummary: %v", err)
	}

	second := &model.Summary{Overview: "second pass", KeyPoints: []string{"gamma"}}
	if err := s.Meetings().ReplaceSummary(ctx, m.MeetingID, second); err != nil {
		t.Fatalf("ReplaceSummary #2: %v", err)
	}

	got, err := s.Meetings().Get(ctx, m.MeetingID)
	if err != nil || got.Summary == nil {
		t.Fatalf("Get: summary=%v err=%v", got.Summary, err)
	}
	if got.Summary.Overview != "second pass" {
		t.Fatalf("overview = %q, want second pass", got.Summary.Overview)
	}
	if len(got.Summary.ActionItems) != 0 || len(got.Summary.Decisions) != 0 || len(got.Summary.SpeakerContributions) != 0 {
		t.Fatalf("fields from the first summary leaked into the second: %+v", got.Summary)
	}
	if len(got.Summary.KeyPoints) != 1 || got.Summary.KeyPoints[0] != "gamma" {
		t.Fatalf("keyPoints = %v", got.Summary.KeyPoints)
	}

	// admin overview edit touches only the overview
	if err := s.Meetings().UpdateSummaryOverview(ctx, m.MeetingID, "hand-edited"); err != nil {
		t.Fatalf("UpdateSummaryOverview: %v", err)
	}
	got, _ = s.Meetings().Get(ctx, m.MeetingID)
	if got.Summary.Overview != "hand-edited" || len(got.Summary.KeyPoints) != 1 {
		t.Fatalf("overview edit corrupted summary: %+v", got.Summary)
	}
}

func testArchiveRestorePurge(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMeeting("host-1", true)
	if _, err := s.Meetings().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// archiving an active meeting is refused
	if err := s.Meetings().Archive(ctx, m.MeetingID, "admin", time.Now()); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Archive active: err=%v, want ErrConflict", err)
	}
	// purge requires archived state
	if err := s.Meetings().Purge(ctx, m.MeetingID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Purge live: err=%v, want ErrConflict", err)
	}

	if err := s.Meetings().End(ctx, m.MeetingID, time.Now()); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := s.Meetings().Archive(ctx, m.MeetingID, "admin", time.Now()); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err := s.Meetings().Get(ctx, m.MeetingID)
	if err != nil || !got.Deleted || got.DeletedBy != "admin" || got.DeletedAt == nil {
		t.Fatalf("after Archive: %+v err=%v", got, err)
	}

	if err := s.Meetings().Restore(ctx, m.MeetingID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, _ = s.Meetings().Get(ctx, m.MeetingID)
	if got.Deleted || got.DeletedAt != nil || got.DeletedBy != "" {
		t.Fatalf("after Restore: %+v", got)
	}

	if err := s.Meetings().Archive(ctx, m.MeetingID, "admin", time.Now()); err != nil {
		t.Fatalf("re-Archive: %v", err)
	}
	if err := s.Meetings().Purge(ctx, m.MeetingID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := s.Meetings().Get(ctx, m.MeetingID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get after Purge: err=%v, want ErrNotFound", err)
	}
	if _, err := s.Segments().List(ctx, m.MeetingID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("List after Purge: err=%v, want ErrNotFound", err)
	}
}

func testProfiles(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := &model.Profile{UserID: "u-1", Email: "u1@example.test", DisplayName: "Uma"}
	if _, err := s.Profiles().Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got, err := s.Profiles().Get(ctx, "u-1"); err != nil || got.DisplayName != "Uma" {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if _, err := s.Profiles().Get(ctx, "nobody"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing: err=%v, want ErrNotFound", err)
	}

	batch, err := s.Profiles().GetBatch(ctx, []string{"u-1", "ghost"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(batch) != 1 || batch["u-1"] == nil {
		t.Fatalf("GetBatch partial resolution: %v", batch)
	}

	// display name updates take effect
	p.DisplayName = "Uma T."
	if _, err := s.Profiles().Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if got, _ := s.Profiles().Get(ctx, "u-1"); got.DisplayName != "Uma T." {
		t.Fatalf("update lost: %+v", got)
	}
}

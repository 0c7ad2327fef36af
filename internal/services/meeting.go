package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meetscribe/meetscribe/server/internal/auth"
	"github.com/meetscribe/meetscribe/server/internal/livefeed"
	"github.com/meetscribe/meetscribe/server/internal/meetingcode"
	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store"
	"github.com/meetscribe/meetscribe/server/internal/summarizer"
)

// languageRx accepts BCP-47-ish tags like "en" or "en-US".
var languageRx = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// shareCodeAttempts bounds retries when a generated code collides.
const shareCodeAttempts = 5

// MeetingService owns the meeting lifecycle, transcript writes and
// summarization orchestration. Every mutating method takes the acting
// identity explicitly; nothing is read from ambient context.
type MeetingService struct {
	store store.Store
	feed  *livefeed.Hub
	sum   summarizer.Client
	log   zerolog.Logger
}

func NewMeetingService(s store.Store, feed *livefeed.Hub, sum summarizer.Client, log zerolog.Logger) *MeetingService {
	return &MeetingService{store: s, feed: feed, sum: sum, log: log}
}

// CreateMeetingRequest carries caller-supplied meeting attributes.
type CreateMeetingRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Language     string     `json:"language"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

// CreateMeeting creates a meeting that is live immediately. The creator is
// the host and its only participant.
func (s *MeetingService) CreateMeeting(ctx context.Context, actor *auth.ActorInfo, req CreateMeetingRequest) (*model.Meeting, error) {
	return s.create(ctx, actor, req, false)
}

// ScheduleMeeting creates a meeting in the scheduled phase.
func (s *MeetingService) ScheduleMeeting(ctx context.Context, actor *auth.ActorInfo, req CreateMeetingRequest) (*model.Meeting, error) {
	if req.ScheduledFor == nil || req.ScheduledFor.IsZero() {
		return nil, fmt.Errorf("scheduledFor is required: %w", model.ErrValidation)
	}
	return s.create(ctx, actor, req, true)
}

func (s *MeetingService) create(ctx context.Context, actor *auth.ActorInfo, req CreateMeetingRequest, scheduled bool) (*model.Meeting, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", model.ErrValidation)
	}
	if req.Language != "" && !languageRx.MatchString(req.Language) {
		return nil, fmt.Errorf("invalid language tag %q: %w", req.Language, model.ErrValidation)
	}

	m := &model.Meeting{
		MeetingID:   uuid.New().String(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   actor.ActorID,
		Language:    req.Language,
		IsActive:    !scheduled,
		IsScheduled: scheduled,
	}
	if scheduled {
		at := req.ScheduledFor.UTC()
		m.ScheduledFor = &at
	}

	// Share codes are unique among non-purged meetings; regenerate on the
	// rare collision.
	var (
		created *model.Meeting
		err     error
	)
	for i := 0; i < shareCodeAttempts; i++ {
		m.ShareCode, err = meetingcode.New()
		if err != nil {
			return nil, err
		}
		created, err = s.store.Meetings().Create(ctx, m)
		if !errors.Is(err, model.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("meetingId", created.MeetingID).
		Str("actorId", actor.ActorID).
		Bool("scheduled", scheduled).
		Msg("meeting created")
	return created, nil
}

func (s *MeetingService) GetMeeting(ctx context.Context, meetingID string) (*model.Meeting, error) {
	return s.store.Meetings().Get(ctx, meetingID)
}

func (s *MeetingService) ListMeetings(ctx context.Context, req model.ListMeetingsRequest) ([]*model.Meeting, error) {
	return s.store.Meetings().List(ctx, req)
}

// StartMeeting advances scheduled → active. Any participant may start;
// starting an already-active meeting is a no-op.
func (s *MeetingService) StartMeeting(ctx context.Context, actor *auth.ActorInfo, meetingID string) error {
	m, err := s.store.Meetings().Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if !actor.Admin && !m.HasParticipant(actor.ActorID) {
		return fmt.Errorf("only participants may start a meeting: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().Start(ctx, meetingID); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventPhaseChanged, MeetingID: meetingID, Phase: model.PhaseActive})
	s.log.Info().Str("meetingId", meetingID).Str("actorId", actor.ActorID).Msg("meeting started")
	return nil
}

// EndMeeting ends the meeting. Host only; ending an already-ended meeting
// succeeds without effect.
func (s *MeetingService) EndMeeting(ctx context.Context, actor *auth.ActorInfo, meetingID string) error {
	m, err := s.store.Meetings().Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if !actor.Admin && !m.IsHost(actor.ActorID) {
		return fmt.Errorf("only the host may end a meeting: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().End(ctx, meetingID, time.Now().UTC()); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventPhaseChanged, MeetingID: meetingID, Phase: model.PhaseEnded})
	s.log.Info().Str("meetingId", meetingID).Str("actorId", actor.ActorID).Msg("meeting ended")
	return nil
}

// Join adds the actor to the meeting identified by a meeting ID or a share
// code. A scheduled meeting whose start time has passed is started by the
// join; otherwise the meeting must already be active.
func (s *MeetingService) Join(ctx context.Context, actor *auth.ActorInfo, codeOrID string) (*model.Meeting, error) {
	m, err := s.resolve(ctx, codeOrID)
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, model.ErrNotFound
	}

	switch m.Phase() {
	case model.PhaseActive:
	case model.PhaseScheduled:
		if m.ScheduledFor != nil && !m.ScheduledFor.After(time.Now()) {
			if err := s.store.Meetings().Start(ctx, m.MeetingID); err != nil {
				return nil, err
			}
			s.feed.Publish(livefeed.Event{Kind: livefeed.EventPhaseChanged, MeetingID: m.MeetingID, Phase: model.PhaseActive})
		} else {
			return nil, fmt.Errorf("meeting has not started yet: %w", model.ErrConflict)
		}
	case model.PhaseEnded:
		return nil, model.ErrMeetingEnded
	}

	if err := s.store.Meetings().AddParticipant(ctx, m.MeetingID, actor.ActorID); err != nil {
		return nil, err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventParticipantJoined, MeetingID: m.MeetingID, UserID: actor.ActorID})
	s.log.Info().Str("meetingId", m.MeetingID).Str("actorId", actor.ActorID).Msg("participant joined")
	return s.store.Meetings().Get(ctx, m.MeetingID)
}

func (s *MeetingService) resolve(ctx context.Context, codeOrID string) (*model.Meeting, error) {
	if meetingcode.Valid(codeOrID) {
		return s.store.Meetings().GetByShareCode(ctx, meetingcode.Canonical(codeOrID))
	}
	return s.store.Meetings().Get(ctx, codeOrID)
}

// AppendSegmentRequest carries one finalized utterance. SpeakerName is a
// display label and may differ from the actor's own name when one device
// captures for several people in the room.
type AppendSegmentRequest struct {
	Text        string `json:"text"`
	SpeakerName string `json:"speakerName"`
	Timestamp   int64  `json:"timestamp"`
}

// AppendSegment appends one transcript segment on behalf of the actor. The
// store enforces active-meeting and unmuted-participant atomically with the
// insert, so concurrent appends never lose or reorder rows.
func (s *MeetingService) AppendSegment(ctx context.Context, actor *auth.ActorInfo, meetingID string, req AppendSegmentRequest) (*model.TranscriptSegment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("segment text is empty: %w", model.ErrValidation)
	}
	name := req.SpeakerName
	if name == "" {
		name = actor.DisplayName
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	seg := &model.TranscriptSegment{
		SegmentID:   uuid.New().String(),
		MeetingID:   meetingID,
		SpeakerID:   actor.ActorID,
		SpeakerName: name,
		Text:        text,
		Timestamp:   ts,
	}
	out, err := s.store.Segments().Append(ctx, seg)
	if err != nil {
		return nil, err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventSegmentAppended, MeetingID: meetingID, UserID: actor.ActorID, Segment: out})
	return out, nil
}

// ListTranscript returns the transcript in authoritative store order.
func (s *MeetingService) ListTranscript(ctx context.Context, meetingID string) ([]*model.TranscriptSegment, error) {
	return s.store.Segments().List(ctx, meetingID)
}

// SetMuted mutes or unmutes a participant. Host only.
func (s *MeetingService) SetMuted(ctx context.Context, actor *auth.ActorInfo, meetingID, userID string, muted bool) error {
	m, err := s.store.Meetings().Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if !actor.Admin && !m.IsHost(actor.ActorID) {
		return fmt.Errorf("only the host may mute participants: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().SetMuted(ctx, meetingID, userID, muted); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventMuteChanged, MeetingID: meetingID, UserID: userID, Muted: muted})
	s.log.Info().Str("meetingId", meetingID).Str("userId", userID).Bool("muted", muted).Msg("mute changed")
	return nil
}

// RemoveParticipant removes a participant from the set. The host can never
// be removed; the removed user's past segments remain in the transcript.
func (s *MeetingService) RemoveParticipant(ctx context.Context, actor *auth.ActorInfo, meetingID, userID string) error {
	m, err := s.store.Meetings().Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if !actor.Admin && !m.IsHost(actor.ActorID) {
		return fmt.Errorf("only the host may remove participants: %w", model.ErrPermission)
	}
	if userID == m.CreatedBy {
		return fmt.Errorf("the host cannot be removed: %w", model.ErrValidation)
	}
	if err := s.store.Meetings().RemoveParticipant(ctx, meetingID, userID); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventParticipantRemoved, MeetingID: meetingID, UserID: userID})
	s.log.Info().Str("meetingId", meetingID).Str("userId", userID).Msg("participant removed")
	return nil
}

// SetLanguage updates the meeting's transcription language. Participants only.
func (s *MeetingService) SetLanguage(ctx context.Context, actor *auth.ActorInfo, meetingID, language string) error {
	if !languageRx.MatchString(language) {
		return fmt.Errorf("invalid language tag %q: %w", language, model.ErrValidation)
	}
	m, err := s.store.Meetings().Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if !actor.Admin && !m.HasParticipant(actor.ActorID) {
		return fmt.Errorf("only participants may change the language: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().SetLanguage(ctx, meetingID, language); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventLanguageChanged, MeetingID: meetingID, Language: language})
	return nil
}

// Summarize runs the transcript through the summarization service and
// replaces the stored summary wholesale. An empty transcript is refused
// locally, before any network call. On failure the existing summary is
// left untouched.
func (s *MeetingService) Summarize(ctx context.Context, actor *auth.ActorInfo, meetingID string) (*model.Summary, error) {
	m, err := s.store.Meetings().Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !m.HasParticipant(actor.ActorID) {
		return nil, fmt.Errorf("only participants may summarize: %w", model.ErrPermission)
	}

	segs, err := s.store.Segments().List(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("transcript is empty, nothing to summarize: %w", model.ErrValidation)
	}

	sum, err := s.sum.Summarize(ctx, summarizer.Request{
		MeetingID: meetingID,
		Title:     m.Title,
		Language:  m.Language,
		Lines:     summarizer.LinesFromSegments(segs),
	})
	if err != nil {
		s.log.Error().Str("meetingId", meetingID).Err(err).Msg("summarization failed")
		return nil, err
	}

	if err := s.store.Meetings().ReplaceSummary(ctx, meetingID, sum); err != nil {
		return nil, err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventSummaryUpdated, MeetingID: meetingID})
	s.log.Info().Str("meetingId", meetingID).Int("segments", len(segs)).Msg("summary generated")
	return sum, nil
}

// UpdateSummaryOverview replaces only the overview text of an existing
// summary. Admin only; no re-summarization happens.
func (s *MeetingService) UpdateSummaryOverview(ctx context.Context, actor *auth.ActorInfo, meetingID, overview string) error {
	if !actor.Admin {
		return fmt.Errorf("admin access required: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().UpdateSummaryOverview(ctx, meetingID, overview); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventSummaryUpdated, MeetingID: meetingID})
	return nil
}

// Archive soft-deletes an ended meeting. Admin only.
func (s *MeetingService) Archive(ctx context.Context, actor *auth.ActorInfo, meetingID string) error {
	if !actor.Admin {
		return fmt.Errorf("admin access required: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().Archive(ctx, meetingID, actor.ActorID, time.Now().UTC()); err != nil {
		return err
	}
	s.feed.Publish(livefeed.Event{Kind: livefeed.EventMeetingArchived, MeetingID: meetingID})
	s.log.Info().Str("meetingId", meetingID).Str("actorId", actor.ActorID).Msg("meeting archived")
	return nil
}

// Restore reverses an archive. Admin only.
func (s *MeetingService) Restore(ctx context.Context, actor *auth.ActorInfo, meetingID string) error {
	if !actor.Admin {
		return fmt.Errorf("admin access required: %w", model.ErrPermission)
	}
	return s.store.Meetings().Restore(ctx, meetingID)
}

// Purge permanently deletes an archived meeting and its transcript.
// Admin only; irreversible.
func (s *MeetingService) Purge(ctx context.Context, actor *auth.ActorInfo, meetingID string) error {
	if !actor.Admin {
		return fmt.Errorf("admin access required: %w", model.ErrPermission)
	}
	if err := s.store.Meetings().Purge(ctx, meetingID); err != nil {
		return err
	}
	s.log.Info().Str("meetingId", meetingID).Str("actorId", actor.ActorID).Msg("meeting purged")
	return nil
}

// Watch subscribes to the meeting's live event stream. The meeting must
// exist; the caller closes the subscription when done.
func (s *MeetingService) Watch(ctx context.Context, meetingID string) (*livefeed.Subscription, error) {
	if _, err := s.store.Meetings().Get(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.feed.Subscribe(meetingID), nil
}

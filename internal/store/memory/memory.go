// Package memory provides a pure in-process store driver. It backs tests and
// the memory build target; one mutex per store keeps every primitive atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store"
)

// New returns an empty in-memory store.
func New() store.Store {
	s := &memStore{
		meetings: make(map[string]*meetingRec),
		byCode:   make(map[string]string),
		profiles: make(map[string]*model.Profile),
		segments: make(map[string][]*model.TranscriptSegment),
		nextSeq:  make(map[string]int64),
	}
	return s
}

type memStore struct {
	mu       sync.Mutex
	meetings map[string]*meetingRec
	byCode   map[string]string // share code -> meeting id
	profiles map[string]*model.Profile
	segments map[string][]*model.TranscriptSegment
	nextSeq  map[string]int64
}

type meetingRec struct {
	meeting model.Meeting
	parts   map[string]struct{}
	muted   map[string]struct{}
}

func (s *memStore) Profiles() store.Profiles { return (*memProfiles)(s) }
func (s *memStore) Meetings() store.Meetings { return (*memMeetings)(s) }
func (s *memStore) Segments() store.Segments { return (*memSegments)(s) }

func (s *memStore) Ping(ctx context.Context) error { return ctx.Err() }

// snapshot materializes an immutable copy of the record for callers.
func (r *meetingRec) snapshot() *model.Meeting {
	out := r.meeting
	out.Participants = setToSlice(r.parts)
	out.MutedParticipants = setToSlice(r.muted)
	if r.meeting.Summary != nil {
		cp := cloneSummary(r.meeting.Summary)
		out.Summary = cp
	}
	return &out
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneSummary(in *model.Summary) *model.Summary {
	out := *in
	out.KeyPoints = append([]string(nil), in.KeyPoints...)
	out.ActionItems = append([]string(nil), in.ActionItems...)
	out.Decisions = append([]string(nil), in.Decisions...)
	out.SpeakerContributions = append([]model.SpeakerContribution(nil), in.SpeakerContributions...)
	return &out
}

// --- Profiles ---

type memProfiles memStore

func (p *memProfiles) Upsert(ctx context.Context, in *model.Profile) (*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *in
	if cp.CreationTime.IsZero() {
		cp.CreationTime = time.Now().UTC()
	}
	if existing, ok := p.profiles[in.UserID]; ok {
		cp.CreationTime = existing.CreationTime
	}
	p.profiles[in.UserID] = &cp
	out := cp
	return &out, nil
}

func (p *memProfiles) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.profiles[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (p *memProfiles) GetBatch(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*model.Profile, len(userIDs))
	for _, id := range userIDs {
		if rec, ok := p.profiles[id]; ok {
			cp := *rec
			out[id] = &cp
		}
	}
	return out, nil
}

// --- Meetings ---

type memMeetings memStore

func (m *memMeetings) Create(ctx context.Context, in *model.Meeting) (*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.meetings[in.MeetingID]; exists {
		return nil, model.ErrConflict
	}
	if in.ShareCode != "" {
		if _, taken := m.byCode[in.ShareCode]; taken {
			return nil, model.ErrConflict
		}
	}
	rec := &meetingRec{
		meeting: *in,
		parts:   map[string]struct{}{in.CreatedBy: {}},
		muted:   map[string]struct{}{},
	}
	if rec.meeting.CreationTime.IsZero() {
		rec.meeting.CreationTime = time.Now().UTC()
	}
	m.meetings[in.MeetingID] = rec
	if in.ShareCode != "" {
		m.byCode[in.ShareCode] = in.MeetingID
	}
	m.nextSeq[in.MeetingID] = 1
	return rec.snapshot(), nil
}

func (m *memMeetings) Get(ctx context.Context, meetingID string) (*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.snapshot(), nil
}

func (m *memMeetings) GetByShareCode(ctx context.Context, code string) (*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	rec, ok := m.meetings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.snapshot(), nil
}

func (m *memMeetings) List(ctx context.Context, req model.ListMeetingsRequest) ([]*model.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Meeting
	for _, rec := range m.meetings {
		if rec.meeting.Deleted != req.Deleted {
			continue
		}
		if req.UserID != "" {
			if _, ok := rec.parts[req.UserID]; !ok {
				continue
			}
		}
		snap := rec.snapshot()
		if req.Phase != "" && snap.Phase() != req.Phase {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreationTime.After(out[j].CreationTime)
	})
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (m *memMeetings) AddParticipant(ctx context.Context, meetingID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	rec.parts[userID] = struct{}{}
	return nil
}

func (m *memMeetings) RemoveParticipant(ctx context.Context, meetingID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	delete(rec.parts, userID)
	delete(rec.muted, userID)
	return nil
}

func (m *memMeetings) SetMuted(ctx context.Context, meetingID, userID string, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	if muted {
		if _, isPart := rec.parts[userID]; !isPart {
			return model.ErrPermission
		}
		rec.muted[userID] = struct{}{}
	} else {
		delete(rec.muted, userID)
	}
	return nil
}

func (m *memMeetings) Start(ctx context.Context, meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	switch {
	case rec.meeting.IsActive:
		return nil // already running
	case rec.meeting.IsScheduled:
		rec.meeting.IsScheduled = false
		rec.meeting.IsActive = true
		return nil
	default:
		return model.ErrMeetingEnded
	}
}

func (m *memMeetings) End(ctx context.Context, meetingID string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	if !rec.meeting.IsActive && !rec.meeting.IsScheduled {
		return nil // idempotent
	}
	rec.meeting.IsActive = false
	rec.meeting.IsScheduled = false
	at := endedAt.UTC()
	rec.meeting.EndedTime = &at
	return nil
}

func (m *memMeetings) SetLanguage(ctx context.Context, meetingID, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	rec.meeting.Language = language
	return nil
}

func (m *memMeetings) ReplaceSummary(ctx context.Context, meetingID string, s *model.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	rec.meeting.Summary = cloneSummary(s)
	return nil
}

func (m *memMeetings) UpdateSummaryOverview(ctx context.Context, meetingID, overview string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	if rec.meeting.Summary == nil {
		return model.ErrConflict
	}
	rec.meeting.Summary.Overview = overview
	return nil
}

func (m *memMeetings) Archive(ctx context.Context, meetingID, deletedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	if rec.meeting.IsActive || rec.meeting.IsScheduled {
		return model.ErrConflict
	}
	if rec.meeting.Deleted {
		return nil
	}
	t := at.UTC()
	rec.meeting.Deleted = true
	rec.meeting.DeletedAt = &t
	rec.meeting.DeletedBy = deletedBy
	return nil
}

func (m *memMeetings) Restore(ctx context.Context, meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	rec.meeting.Deleted = false
	rec.meeting.DeletedAt = nil
	rec.meeting.DeletedBy = ""
	return nil
}

func (m *memMeetings) Purge(ctx context.Context, meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meetings[meetingID]
	if !ok {
		return model.ErrNotFound
	}
	if !rec.meeting.Deleted {
		return model.ErrConflict
	}
	delete(m.meetings, meetingID)
	delete(m.segments, meetingID)
	delete(m.nextSeq, meetingID)
	if rec.meeting.ShareCode != "" {
		delete(m.byCode, rec.meeting.ShareCode)
	}
	return nil
}

// --- Segments ---

type memSegments memStore

func (s *memSegments) Append(ctx context.Context, seg *model.TranscriptSegment) (*model.TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.meetings[seg.MeetingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !rec.meeting.IsActive {
		return nil, model.ErrMeetingEnded
	}
	if _, isPart := rec.parts[seg.SpeakerID]; !isPart {
		return nil, model.ErrPermission
	}
	if _, isMuted := rec.muted[seg.SpeakerID]; isMuted {
		return nil, model.ErrMuted
	}
	cp := *seg
	cp.Seq = s.nextSeq[seg.MeetingID]
	s.nextSeq[seg.MeetingID]++
	cp.StoredTime = time.Now().UTC()
	s.segments[seg.MeetingID] = append(s.segments[seg.MeetingID], &cp)
	out := cp
	return &out, nil
}

func (s *memSegments) List(ctx context.Context, meetingID string) ([]*model.TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[meetingID]; !ok {
		return nil, model.ErrNotFound
	}
	src := s.segments[meetingID]
	out := make([]*model.TranscriptSegment, len(src))
	for i, seg := range src {
		cp := *seg
		out[i] = &cp
	}
	return out, nil
}

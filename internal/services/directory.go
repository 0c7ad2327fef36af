package services

import (
	"context"

	"github.com/meetscribe/meetscribe/server/internal/model"
	"github.com/meetscribe/meetscribe/server/internal/store"
)

// DirectoryService resolves user identities to display records.
type DirectoryService struct {
	store store.Store
}

func NewDirectoryService(s store.Store) *DirectoryService {
	return &DirectoryService{store: s}
}

func (s *DirectoryService) UpsertProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	return s.store.Profiles().Upsert(ctx, p)
}

func (s *DirectoryService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.store.Profiles().Get(ctx, userID)
}

// ResolveParticipants maps a meeting's participant set to display records.
// A missing profile never fails the call: the host falls back to
// "Meeting Host" and everyone else to "User " plus an ID prefix, so a
// roster renders even when the directory is incomplete.
func (s *DirectoryService) ResolveParticipants(ctx context.Context, m *model.Meeting) ([]*model.Participant, error) {
	profiles, err := s.store.Profiles().GetBatch(ctx, m.Participants)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Participant, 0, len(m.Participants))
	for _, userID := range m.Participants {
		p := &model.Participant{
			UserID:  userID,
			IsHost:  m.IsHost(userID),
			IsMuted: m.IsMuted(userID),
		}
		if prof, ok := profiles[userID]; ok {
			p.DisplayName = prof.DisplayName
			p.Email = prof.Email
		} else {
			p.DisplayName = placeholderName(m, userID)
			p.Placeholder = true
		}
		out = append(out, p)
	}
	return out, nil
}

func placeholderName(m *model.Meeting, userID string) string {
	if m.IsHost(userID) {
		return "Meeting Host"
	}
	id := userID
	if len(id) > 6 {
		id = id[:6]
	}
	return "User " + id
}

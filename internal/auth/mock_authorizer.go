package auth

import "context"

// LocalDevAPIKey is the hardcoded API key for local development only.
const LocalDevAPIKey = "sk_local_meetscribe_dev_key"

// MockAuthorizer recognizes only LocalDevAPIKey and resolves it to a dev
// actor with admin access. Used in tests and local development.
type MockAuthorizer struct{}

func NewMockAuthorizer() *MockAuthorizer { return &MockAuthorizer{} }

func (m *MockAuthorizer) Authorize(ctx context.Context, apiKey string) (*ActorInfo, error) {
	if apiKey != LocalDevAPIKey {
		return nil, ErrInvalidAPIKey
	}
	return &ActorInfo{
		ActorID:     "meetscribe-dev",
		DisplayName: "Meetscribe Dev",
		Admin:       true,
	}, nil
}

package auth

import (
	"context"
	"errors"
)

// ActorInfo describes an authenticated caller.
type ActorInfo struct {
	ActorID     string `json:"actorId"`
	DisplayName string `json:"displayName"`
	Admin       bool   `json:"admin"`
}

// ErrInvalidAPIKey is returned when a presented API key is unknown.
var ErrInvalidAPIKey = errors.New("invalid API key")

// Authorizer resolves an API key to the actor behind it. Handlers call it
// inline; there is no auth middleware.
type Authorizer interface {
	Authorize(ctx context.Context, apiKey string) (*ActorInfo, error)
}

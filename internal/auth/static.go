package auth

import (
	"context"
	"fmt"
	"strings"
)

// StaticAuthorizer resolves API keys from a fixed table loaded at startup.
// It backs both local development (a single seeded key) and small cloud
// deployments where keys are provisioned through configuration.
type StaticAuthorizer struct {
	keys map[string]ActorInfo
}

// NewStaticAuthorizer builds an authorizer from a parsed key table.
func NewStaticAuthorizer(keys map[string]ActorInfo) *StaticAuthorizer {
	return &StaticAuthorizer{keys: keys}
}

// ParseKeys parses the MEETSCRIBE_API_KEYS format:
//
//	token=userId:displayName[:admin],token2=...
//
// DisplayName may not contain ':' or ','.
func ParseKeys(raw string) (map[string]ActorInfo, error) {
	out := make(map[string]ActorInfo)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, spec, ok := strings.Cut(entry, "=")
		if !ok || token == "" {
			return nil, fmt.Errorf("api key entry %q: expected token=userId:displayName", entry)
		}
		fields := strings.Split(spec, ":")
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("api key entry %q: expected token=userId:displayName", entry)
		}
		info := ActorInfo{ActorID: fields[0], DisplayName: fields[1]}
		if len(fields) > 2 && fields[2] == "admin" {
			info.Admin = true
		}
		out[token] = info
	}
	return out, nil
}

// Authorize looks the key up in the static table.
func (s *StaticAuthorizer) Authorize(ctx context.Context, apiKey string) (*ActorInfo, error) {
	info, ok := s.keys[apiKey]
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	out := info
	return &out, nil
}

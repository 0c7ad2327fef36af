package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meetscribe/meetscribe/server/internal/auth"
	"github.com/meetscribe/meetscribe/server/internal/config"
)

// NewAuthorizer builds the API key authorizer. Without configured keys the
// single hardcoded dev key is used, which is refused in production.
func NewAuthorizer(cfg *config.Config, log zerolog.Logger) (auth.Authorizer, error) {
	if cfg.APIKeys == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("MEETSCRIBE_API_KEYS is required in production")
		}
		log.Warn().Msg("no API keys configured; using the local dev key")
		return auth.NewMockAuthorizer(), nil
	}
	keys, err := auth.ParseKeys(cfg.APIKeys)
	if err != nil {
		return nil, err
	}
	return auth.NewStaticAuthorizer(keys), nil
}

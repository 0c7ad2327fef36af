package logger

import "testing"

func TestNewCarriesServiceField(t *testing.T) {
	log := New("meeting-service")
	// Logger must be usable without further configuration.
	log.Info().Msg("logger smoke test")
}

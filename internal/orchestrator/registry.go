package orchestrator

import "github.com/synaxis-gateway/synaxis/internal/providers"

// MapRegistry is a static Sender lookup keyed by provider key, sufficient
// for tests and for a gateway whose adapter set doesn't change between
// config reloads.
type MapRegistry map[string]providers.Sender

func (r MapRegistry) Sender(providerKey string) (providers.Sender, bool) {
	s, ok := r[providerKey]
	return s, ok
}

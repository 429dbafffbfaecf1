package httpapi

import (
	"fmt"

	"github.com/synaxis-gateway/synaxis/internal/gatewaycfg"
	"github.com/synaxis-gateway/synaxis/internal/orchestrator"
	"github.com/synaxis-gateway/synaxis/internal/providers/anthropic"
	"github.com/synaxis-gateway/synaxis/internal/providers/azureopenai"
	"github.com/synaxis-gateway/synaxis/internal/providers/openaicompat"
)

// BuildRegistry instantiates one adapter per enabled provider in snap,
// selecting the wire implementation from ProviderConfig.Type. huggingface
// and custom providers ride the openai-compatible adapter since their wire
// payload shape is unchanged from OpenAI.
func BuildRegistry(snap *gatewaycfg.Snapshot) (orchestrator.MapRegistry, error) {
	reg := make(orchestrator.MapRegistry, len(snap.Providers))
	for key, p := range snap.Providers {
		if !p.Enabled {
			continue
		}
		switch p.Type {
		case gatewaycfg.ProviderOpenAICompatible, gatewaycfg.ProviderHuggingFace, gatewaycfg.ProviderCustom:
			reg[key] = openaicompat.New(key, p.Secret, p.Endpoint)
		case gatewaycfg.ProviderAnthropic:
			reg[key] = anthropic.New(key, p.Secret, p.Endpoint)
		case gatewaycfg.ProviderAzureOpenAI:
			opts := []azureopenai.Option{}
			if p.AzureAPIVersion != "" {
				opts = append(opts, azureopenai.WithAPIVersion(p.AzureAPIVersion))
			}
			reg[key] = azureopenai.New(key, p.Secret, p.Endpoint, opts...)
		default:
			return nil, fmt.Errorf("httpapi: provider %q has unsupported type %q", key, p.Type)
		}
	}
	return reg, nil
}

// Package gatewaycfg holds the gateway's typed configuration: providers,
// canonical models, routing policies, and the hot-reloadable snapshot that
// binds them together.
package gatewaycfg

// EndpointKind identifies which OpenAI-compatible surface a request targets.
type EndpointKind string

const (
	EndpointChat        EndpointKind = "chat"
	EndpointCompletions EndpointKind = "completions"
	EndpointResponses   EndpointKind = "responses"
	EndpointEmbeddings  EndpointKind = "embeddings"
)

// Capability is a feature a canonical model may support.
type Capability string

const (
	CapStreaming        Capability = "streaming"
	CapTools            Capability = "tools"
	CapVision           Capability = "vision"
	CapReasoning        Capability = "reasoning"
	CapStructuredOutput Capability = "structured_output"
	CapEmbeddings       Capability = "embeddings"
)

// ProviderType selects which wire adapter a provider is driven by.
type ProviderType string

const (
	ProviderOpenAICompatible ProviderType = "openai-compatible"
	ProviderAnthropic        ProviderType = "anthropic"
	ProviderAzureOpenAI      ProviderType = "azure-openai"
	ProviderHuggingFace      ProviderType = "huggingface"
	ProviderGitHubCopilot    ProviderType = "github-copilot"
	ProviderCustom           ProviderType = "custom"
)

// supportedEndpoints lists which endpoint kinds each provider type's wire
// protocol covers. huggingface and custom ride the openai-compatible wire
// shape: custom shares its full endpoint set, huggingface the same set
// without responses.
var supportedEndpoints = map[ProviderType]map[EndpointKind]bool{
	ProviderOpenAICompatible: {EndpointChat: true, EndpointCompletions: true, EndpointResponses: true, EndpointEmbeddings: true},
	ProviderHuggingFace:      {EndpointChat: true, EndpointCompletions: true, EndpointEmbeddings: true},
	ProviderCustom:           {EndpointChat: true, EndpointCompletions: true, EndpointResponses: true, EndpointEmbeddings: true},
	ProviderAnthropic:        {EndpointChat: true},
	ProviderAzureOpenAI:      {EndpointChat: true, EndpointCompletions: true, EndpointResponses: true, EndpointEmbeddings: true},
	ProviderGitHubCopilot:    {EndpointChat: true},
}

// SupportsEndpoint reports whether a provider type's wire protocol covers
// the given endpoint kind.
func (t ProviderType) SupportsEndpoint(kind EndpointKind) bool {
	return supportedEndpoints[t][kind]
}

// ProviderConfig is the identity and operating parameters of one upstream.
type ProviderConfig struct {
	Key                     string            `json:"key"`
	Type                    ProviderType      `json:"type"`
	Endpoint                string            `json:"endpoint"`
	Secret                  string            `json:"secret"`
	CustomHeaders           map[string]string `json:"customHeaders,omitempty"`
	Enabled                 bool              `json:"enabled"`
	Tier                    int               `json:"tier"`
	IsFree                  bool              `json:"isFree"`
	QualityScore            int               `json:"qualityScore"`
	EstimatedQuotaRemaining int               `json:"estimatedQuotaRemaining"`
	AverageLatencyMs        *int              `json:"averageLatencyMs,omitempty"`
	RateLimitRPM            *int              `json:"rateLimitRPM,omitempty"`
	RateLimitTPM            *int              `json:"rateLimitTPM,omitempty"`
	// AzureAPIVersion and AzureDeploymentMap are consulted only when
	// Type == ProviderAzureOpenAI.
	AzureAPIVersion    string            `json:"azureApiVersion,omitempty"`
	AzureDeploymentMap map[string]string `json:"azureDeploymentMap,omitempty"`
}

// CanonicalModel is a logical model id visible to clients.
type CanonicalModel struct {
	ID           string            `json:"id"`
	Provider     string            `json:"provider"`
	ModelPath    string            `json:"modelPath"`
	Capabilities map[Capability]bool `json:"capabilities"`
	Aliases      []string          `json:"aliases,omitempty"`
}

// HasCapabilities reports whether every capability in required is present.
func (m CanonicalModel) HasCapabilities(required []Capability) bool {
	for _, c := range required {
		if !m.Capabilities[c] {
			return false
		}
	}
	return true
}

// ModelCost is the per-(provider, canonical model) price.
type ModelCost struct {
	ProviderKey      string  `json:"providerKey"`
	CanonicalID      string  `json:"canonicalId"`
	InputCostPerTok  float64 `json:"inputCostPerToken"`
	OutputCostPerTok float64 `json:"outputCostPerToken"`
	FreeTier         bool    `json:"freeTier"`
}

// PolicyScope is the precedence level a RoutingScorePolicy applies at.
type PolicyScope string

const (
	ScopeGlobal PolicyScope = "global"
	ScopeTenant PolicyScope = "tenant"
	ScopeUser   PolicyScope = "user"
)

// RoutingScorePolicy is the weight set C6 applies when scoring candidates.
type RoutingScorePolicy struct {
	Scope          PolicyScope `json:"scope"`
	ScopeID        string      `json:"scopeId,omitempty"` // tenant id or user id; empty for Global
	QualityWeight  float64     `json:"qualityWeight"`
	QuotaWeight    float64     `json:"quotaWeight"`
	RateLimitWeight float64    `json:"rateLimitWeight"`
	LatencyWeight  float64     `json:"latencyWeight"`
}

// Normalized returns a copy whose weights sum to 1. A policy with all-zero
// weights normalizes to equal quarters so it still produces a usable score.
func (p RoutingScorePolicy) Normalized() RoutingScorePolicy {
	sum := p.QualityWeight + p.QuotaWeight + p.RateLimitWeight + p.LatencyWeight
	if sum <= 0 {
		return RoutingScorePolicy{
			Scope: p.Scope, ScopeID: p.ScopeID,
			QualityWeight: 0.25, QuotaWeight: 0.25, RateLimitWeight: 0.25, LatencyWeight: 0.25,
		}
	}
	return RoutingScorePolicy{
		Scope:           p.Scope,
		ScopeID:         p.ScopeID,
		QualityWeight:   p.QualityWeight / sum,
		QuotaWeight:     p.QuotaWeight / sum,
		RateLimitWeight: p.RateLimitWeight / sum,
		LatencyWeight:   p.LatencyWeight / sum,
	}
}

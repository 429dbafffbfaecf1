package translate

import "github.com/synaxis-gateway/synaxis/internal/gatewaycfg"

// Translator converts between CanonicalRequest/Response/Chunk and one
// provider's wire dialect. Implementations must not perform I/O; adapters
// own the HTTP transport and call a Translator purely to shape bytes.
type Translator interface {
	TranslateRequest(CanonicalRequest) ([]byte, error)
	TranslateResponse(wire []byte) (CanonicalResponse, error)
	// TranslateChunk converts one streamed wire event into a CanonicalChunk.
	// event is the named SSE event type when the wire protocol uses one
	// (Anthropic); it is ignored by protocols that only use bare "data:"
	// lines (OpenAI-compatible).
	TranslateChunk(event string, data []byte, state *ChunkState) (CanonicalChunk, error)
}

// ForProviderType returns the registered Translator for a provider type.
// huggingface and custom ride the openai-compatible wire shape.
func ForProviderType(t gatewaycfg.ProviderType) (Translator, bool) {
	switch t {
	case gatewaycfg.ProviderOpenAICompatible, gatewaycfg.ProviderAzureOpenAI, gatewaycfg.ProviderHuggingFace, gatewaycfg.ProviderCustom:
		return OpenAICompatTranslator{}, true
	case gatewaycfg.ProviderAnthropic:
		return AnthropicTranslator{}, true
	default:
		return nil, false
	}
}

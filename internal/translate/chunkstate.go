package translate

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/synaxis-gateway/synaxis/internal/gatewayerr"
)

// ChunkState accumulates partial tool-call deltas across a single stream.
// Wire protocols deliver a tool call's name and id on its first chunk and
// only argument fragments afterward, fragment boundaries falling wherever
// the upstream tokenizer happened to cut; ChunkState buffers each tool
// call's argument fragments until they form balanced, valid JSON and only
// then hands the caller a delta, so a consumer never sees a half-written
// arguments object. ValidateComplete reports any tool call that never
// reached a balanced state, which happens when the upstream stream ends or
// errors mid-argument.
type ChunkState struct {
	mu      sync.Mutex
	byIndex map[int]*toolCallAccum
	order   []int
}

type toolCallAccum struct {
	id      string
	name    string
	args    strings.Builder
	flushed bool
}

// NewChunkState creates an empty accumulator for one stream.
func NewChunkState() *ChunkState {
	return &ChunkState{byIndex: make(map[int]*toolCallAccum)}
}

// accumulate folds wtcs' fragments into their per-index buffers and returns
// a delta for every tool call whose buffered arguments just became valid,
// balanced JSON. A tool call already flushed, or one whose arguments remain
// unbalanced, produces no delta this call.
func (s *ChunkState) accumulate(wtcs []wireToolCall) []ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deltas []ToolCall
	for _, wtc := range wtcs {
		idx := 0
		if wtc.Index != nil {
			idx = *wtc.Index
		}
		acc, ok := s.byIndex[idx]
		if !ok {
			acc = &toolCallAccum{}
			s.byIndex[idx] = acc
			s.order = append(s.order, idx)
		}
		if wtc.ID != "" {
			acc.id = wtc.ID
		}
		if wtc.Function.Name != "" {
			acc.name = wtc.Function.Name
		}
		acc.args.WriteString(wtc.Function.Arguments)

		if acc.flushed {
			continue
		}
		args := acc.args.String()
		if args == "" || !json.Valid([]byte(args)) {
			continue
		}
		acc.flushed = true
		deltas = append(deltas, ToolCall{ID: acc.id, Name: acc.name, Arguments: args})
	}
	return deltas
}

// Completed returns the fully reassembled tool calls seen so far, ordered
// by wire index, regardless of whether each one ever balanced.
func (s *ChunkState) Completed() []ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexes := make([]int, 0, len(s.byIndex))
	for idx := range s.byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		acc := s.byIndex[idx]
		out = append(out, ToolCall{ID: acc.id, Name: acc.name, Arguments: acc.args.String()})
	}
	return out
}

// ValidateComplete reports a ToolCallParseError naming every tool call whose
// buffered arguments never became valid JSON. Call it once the stream has
// reached its terminal chunk (a finish reason, or the provider's Done
// signal); a nil return means every tool call the stream announced was
// fully delivered.
func (s *ChunkState) ValidateComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unbalanced []string
	for _, idx := range s.order {
		acc := s.byIndex[idx]
		if acc.flushed {
			continue
		}
		name := acc.name
		if name == "" {
			name = acc.id
		}
		unbalanced = append(unbalanced, name)
	}
	if len(unbalanced) == 0 {
		return nil
	}
	return gatewayerr.New(gatewayerr.ToolCallParseError,
		"stream ended with truncated tool call arguments: "+strings.Join(unbalanced, ", "), nil)
}

// Package llmprovider abstracts over function-calling-capable LLM backends.
// The agent loop talks to fast/deep tiers exclusively through the Provider
// interface; it never knows whether a given tier is backed by a remote
// model-serving process, a local model, or a test double.
package llmprovider

import (
	"context"
	"time"
)

// Message is one turn of the prompt transcript handed to Complete.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// FunctionSchema is the function-calling-shaped description of one
// callable tool, as produced by toolbox.Registry.Describe.
type FunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]FunctionParam
	Required    []string
}

// FunctionParam mirrors toolbox.FunctionParam without importing the
// toolbox package, keeping llmprovider free of a dependency on the tool
// catalog's internal types.
type FunctionParam struct {
	Type        string
	Description string
}

// Config carries per-call generation parameters.
type Config struct {
	Temperature        float32
	MaxTokens          int32
	StopSequences      []string
	ForceFunctionCall  bool
}

// ResponseKind tags which variant of ProviderResponse is populated.
type ResponseKind int

const (
	ResponseEmpty ResponseKind = iota
	ResponseTextOnly
	ResponseFunctionCall
)

// ProviderResponse is the tagged variant Complete returns: exactly one of
// TextOnly, FunctionCall, or Empty is meaningful per Kind.
type ProviderResponse struct {
	Kind          ResponseKind
	Text          string
	FunctionName  string
	ArgumentsJSON string // caller must handle parse failure; not validated here
	TokensIn      int
	TokensOut     int
}

// Provider is implemented once per model tier (fast, deep, and optionally
// a locally-hosted third tier) — the agent loop is indifferent to which.
type Provider interface {
	Complete(ctx context.Context, messages []Message, functions []FunctionSchema, cfg Config) (ProviderResponse, error)
}

// EndpointConfig describes how to reach one tier's backing model-serving
// process.
type EndpointConfig struct {
	Address        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	CostPerKTokIn  float64
	CostPerKTokOut float64
}

// EstimatedCost computes the dollar cost of one completion from its token
// counts, using this endpoint's configured per-thousand-token rates.
func (e EndpointConfig) EstimatedCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1000*e.CostPerKTokIn + float64(tokensOut)/1000*e.CostPerKTokOut
}

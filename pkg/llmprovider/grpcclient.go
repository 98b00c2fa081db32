package llmprovider

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const completeMethod = "/redlance.llmprovider.LLMService/Complete"

// GRPCProvider dials a model-serving process over gRPC, the same
// transport tarsy's pkg/llm.Client uses to reach its thinking-model
// sidecar. One GRPCProvider instance backs exactly one tier (fast or
// deep); the tier's model name, cost rates, and timeout come from its
// EndpointConfig.
type GRPCProvider struct {
	tier string
	cfg  EndpointConfig
	conn *grpc.ClientConn
}

// NewGRPCProvider dials addr eagerly-lazily (grpc.NewClient does not block
// on connection establishment — it connects on first RPC), matching the
// teacher's NewClient behavior.
func NewGRPCProvider(tier string, cfg EndpointConfig) (*GRPCProvider, error) {
	conn, err := grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing %s provider at %s: %w", tier, cfg.Address, err)
	}
	return &GRPCProvider{tier: tier, cfg: cfg, conn: conn}, nil
}

// Close releases the underlying gRPC connection.
func (p *GRPCProvider) Close() error { return p.conn.Close() }

// Complete implements Provider.
func (p *GRPCProvider) Complete(ctx context.Context, messages []Message, functions []FunctionSchema, cfg Config) (ProviderResponse, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	if p.cfg.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+p.cfg.APIKey)
	}

	req := &completionRequest{
		Model:             p.cfg.Model,
		Messages:          toWireMessages(messages),
		Functions:         toWireFunctions(functions),
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		StopSequences:     cfg.StopSequences,
		ForceFunctionCall: cfg.ForceFunctionCall,
	}
	resp := &completionResponse{}

	err := p.conn.Invoke(ctx, completeMethod, req, resp, grpc.CallContentSubtype(codecName))
	if err != nil {
		return ProviderResponse{}, classifyGRPCError(p.tier, err)
	}

	return toProviderResponse(resp), nil
}

func toWireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func toWireFunctions(functions []FunctionSchema) []wireFunction {
	out := make([]wireFunction, len(functions))
	for i, f := range functions {
		params := make(map[string]wireParamSpec, len(f.Parameters))
		for k, v := range f.Parameters {
			params[k] = wireParamSpec{Type: v.Type, Description: v.Description}
		}
		out[i] = wireFunction{Name: f.Name, Description: f.Description, Parameters: params, Required: f.Required}
	}
	return out
}

func toProviderResponse(resp *completionResponse) ProviderResponse {
	switch {
	case resp.FunctionName != "":
		return ProviderResponse{
			Kind:          ResponseFunctionCall,
			FunctionName:  resp.FunctionName,
			ArgumentsJSON: resp.ArgumentsJSON,
			TokensIn:      resp.TokensIn,
			TokensOut:     resp.TokensOut,
		}
	case resp.Text != "":
		return ProviderResponse{Kind: ResponseTextOnly, Text: resp.Text, TokensIn: resp.TokensIn, TokensOut: resp.TokensOut}
	default:
		return ProviderResponse{Kind: ResponseEmpty, TokensIn: resp.TokensIn, TokensOut: resp.TokensOut}
	}
}

package llmprovider

// wireMessage/wireFunction/completionRequest/completionResponse are the
// JSON wire shapes exchanged with the model-serving process over the
// jsonCodec-framed gRPC call. They mirror the teacher's ThinkingRequest/
// ThinkingChunk protobuf messages in spirit (session messages in, typed
// chunks out) but are plain Go structs since no protoc-generated package
// is available here.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireFunction struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  map[string]wireParamSpec `json:"parameters"`
	Required    []string                 `json:"required"`
}

type wireParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type completionRequest struct {
	Model             string         `json:"model"`
	Messages          []wireMessage  `json:"messages"`
	Functions         []wireFunction `json:"functions,omitempty"`
	Temperature       float32        `json:"temperature"`
	MaxTokens         int32          `json:"max_tokens"`
	StopSequences     []string       `json:"stop_sequences,omitempty"`
	ForceFunctionCall bool           `json:"force_function_call"`
}

type completionResponse struct {
	Text          string `json:"text"`
	FunctionName  string `json:"function_name"`
	ArgumentsJSON string `json:"arguments_json"`
	TokensIn      int    `json:"tokens_in"`
	TokensOut     int    `json:"tokens_out"`
}

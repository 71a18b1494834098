package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// StreamingClient is an LLMClient whose backend delivers the answer
// incrementally. onChunk is called once per raw text chunk, in order,
// from a single goroutine; returning an error aborts the stream and
// surfaces from GenerateStream.
type StreamingClient interface {
	LLMClient
	GenerateStream(ctx context.Context, prompt string, params GenerationParams, onChunk func(chunk string) error) error
}

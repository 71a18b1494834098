package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ScriptedClient replays a fixed response, chunked, with an optional
// delay between chunks. It is the offline backend: demos and tests get
// deterministic streams without a model server.
type ScriptedClient struct {
	// Response is the full text to replay. If empty, a small canned
	// explanation-plus-HTML answer is used.
	Response string

	// ChunkSize is the number of bytes per streamed chunk. Zero means 16.
	ChunkSize int

	// ChunkDelay is an optional pause between chunks, to approximate a
	// real model's cadence. Zero streams as fast as the consumer reads.
	ChunkDelay time.Duration
}

const scriptedDefaultResponse = "Here is a simple page.\n" +
	"```html\n" +
	"<!DOCTYPE html>\n<html>\n<body>\n<h1>Hello</h1>\n</body>\n</html>\n" +
	"```\n" +
	"Open it in a browser to view the result."

func (c *ScriptedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	return c.response(), nil
}

func (c *ScriptedClient) GenerateStream(ctx context.Context, prompt string, params GenerationParams, onChunk func(chunk string) error) error {
	text := c.response()
	size := c.ChunkSize
	if size <= 0 {
		size = 16
	}
	for start := 0; start < len(text); start += size {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		if err := onChunk(text[start:end]); err != nil {
			return err
		}
		if c.ChunkDelay > 0 {
			select {
			case <-time.After(c.ChunkDelay):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
		}
	}
	return nil
}

func (c *ScriptedClient) response() string {
	if strings.TrimSpace(c.Response) == "" {
		return scriptedDefaultResponse
	}
	return c.Response
}

var _ StreamingClient = (*ScriptedClient)(nil)

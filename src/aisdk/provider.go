package aisdk

import (
	"context"
	"io"
)

// Provider represents an AI provider interface
type Provider interface {
	Model(ctx context.Context, modelName string) (ModelClient, error)
}

// ModelClient represents a client for a specific model. OpenStream returns
// the raw response body; decoding is left to a frame reader so the runtime
// controls chunk handling.
type ModelClient interface {
	OpenStream(ctx context.Context, req *ChatCompletionRequest) (io.ReadCloser, error)
	ModelID() string
}

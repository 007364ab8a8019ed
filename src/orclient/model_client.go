package orclient

import (
	"context"
	"io"

	"github.com/elee1766/turnkit/src/aisdk"
)

var _ aisdk.ModelClient = (*ModelClient)(nil)

// ModelClient represents a client bound to a specific model
type ModelClient struct {
	client *Client
	model  string
}

// OpenStream opens a streaming chat completion with the bound model. The
// caller owns the returned body.
func (mc *ModelClient) OpenStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (io.ReadCloser, error) {
	bound := *req
	bound.Model = mc.model
	return mc.client.openStream(ctx, &bound)
}

// ModelID returns the bound model name.
func (mc *ModelClient) ModelID() string {
	return mc.model
}

// Package mock provides an llm.Client implementation for tests.
package mock

import (
	"context"
	"sync"

	"github.com/riegen-io/riegen/internal/llm"
)

// Client satisfies llm.Client for testing. Every request is recorded so tests
// can assert how many model invocations a code path performed.
type Client struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

func (c *Client) Model() string { return "mock-model" }

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.CompleteFunc != nil {
		return c.CompleteFunc(ctx, req)
	}
	return &llm.Completion{Text: "{}", PromptTokens: 1, CompletionTokens: 1}, nil
}

// Requests returns a copy of all recorded requests in invocation order.
func (c *Client) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Calls returns the number of model invocations performed.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// NewFailing returns a Client that always returns the given error.
func NewFailing(err error) *Client {
	return &Client{
		CompleteFunc: func(_ context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
			return nil, err
		},
	}
}

// Compile-time check that Client implements llm.Client.
var _ llm.Client = (*Client)(nil)

// Package llm performs the network calls to the LLM provider. It exposes a
// single Complete operation over two transports: a buffered request/response
// and an incrementally-delivered SSE stream. Retries are deliberately absent;
// retry policy belongs to the caller.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
	maxErrorBody     = 4096
)

// UpstreamError is returned when the provider responds with a non-success
// status or an empty completion. It carries the status code and body for
// diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream provider error: status %d: %s", e.StatusCode, e.Body)
}

// CompletionRequest is the input to one model invocation.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
	Stream    bool
}

// Completion is the reassembled output of one model invocation. Token usage
// is reported once per call by the provider.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	StopReason       string
}

// Client is the interface for invoking the model.
// Never call the provider directly — always inject this interface.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
}

// HTTPClient implements Client against an Anthropic-compatible messages
// endpoint. Each Complete call performs exactly one outbound request.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPClient creates a new provider client.
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model identifier.
func (c *HTTPClient) Model() string { return c.model }

// Complete invokes the model once and returns the full completion text plus
// usage figures. In streamed mode text fragments are reassembled in arrival
// order and malformed events are skipped without aborting the stream.
func (c *HTTPClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.User}},
		Stream:    req.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var completion *Completion
	if req.Stream {
		completion, err = readStream(resp.Body)
	} else {
		completion, err = readBuffered(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(completion.Text) == "" {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: "provider returned an empty completion"}
	}
	return completion, nil
}

func readBuffered(r io.Reader) (*Completion, error) {
	var resp messagesResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Completion{
		Text:             text.String(),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		StopReason:       resp.StopReason,
	}, nil
}

// readStream drains an SSE event stream, concatenating text deltas in arrival
// order. Usage figures are taken from whichever event reports them; the
// terminal message_stop event ends the read.
func readStream(r io.Reader) (*Completion, error) {
	var (
		text       strings.Builder
		completion Completion
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// One malformed event must not abort the whole stream.
			continue
		}

		switch ev.Type {
		case "message_start":
			if ev.Message.Usage.InputTokens > 0 {
				completion.PromptTokens = ev.Message.Usage.InputTokens
			}
		case "content_block_delta":
			text.WriteString(ev.Delta.Text)
		case "message_delta":
			if ev.Usage.OutputTokens > 0 {
				completion.CompletionTokens = ev.Usage.OutputTokens
			}
			if ev.Delta.StopReason != "" {
				completion.StopReason = ev.Delta.StopReason
			}
		case "message_stop":
			completion.Text = text.String()
			return &completion, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	// Stream ended without a terminal event; keep what arrived.
	completion.Text = text.String()
	return &completion, nil
}

// --- provider wire types ---

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Message struct {
		Usage usage `json:"usage"`
	} `json:"message"`
	Usage usage `json:"usage"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

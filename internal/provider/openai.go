package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"talkbot/internal/domain"
)

const openaiDefaultBase = "https://api.openai.com/v1"

// OpenAI implements domain.Backend against any OpenAI-compatible chat
// completions endpoint.
type OpenAI struct {
	apiBase      string
	apiKey       string
	defaultModel string
	client       *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

type OpenAIConfig struct {
	APIBase      string
	APIKey       string
	DefaultModel string
	Logger       *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = openaiDefaultBase
	}
	return &OpenAI{
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		client:       newHTTPClient(),
		streamClient: newStreamingClient(),
		logger:       cfg.Logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	o.auth(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai returned status %d", resp.StatusCode)
	}
	return nil
}

func (o *OpenAI) auth(req *http.Request) {
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
}

type openaiRequest struct {
	Model    string      `json:"model"`
	Messages []openaiMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

// openaiMsg content is either a plain string or a part list when the
// message carries images.
type openaiMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *openaiImagePart `json:"image_url,omitempty"`
}

type openaiImagePart struct {
	URL string `json:"url"`
}

type openaiChoice struct {
	Delta        openaiDelta `json:"delta"`
	Message      openaiDelta `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type openaiDelta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

func (o *OpenAI) buildBody(req domain.ChatRequest, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]openaiMsg, 0, len(req.Messages))
	for _, m := range req.Messages {
		if len(m.Images) == 0 {
			msgs = append(msgs, openaiMsg{Role: m.Role, Content: m.Content})
			continue
		}
		parts := []openaiPart{{Type: "text", Text: m.Content}}
		for _, img := range m.Images {
			parts = append(parts, openaiPart{
				Type:     "image_url",
				ImageURL: &openaiImagePart{URL: "data:image/jpeg;base64," + img},
			})
		}
		msgs = append(msgs, openaiMsg{Role: m.Role, Content: parts})
	}

	return json.Marshal(openaiRequest{Model: model, Messages: msgs, Stream: stream})
}

// ChatStream opens a streaming chat completion; chunks arrive as SSE events.
func (o *OpenAI) ChatStream(ctx context.Context, req domain.ChatRequest) (domain.ChatStream, error) {
	jsonBody, err := o.buildBody(req, true)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(streamCtx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	o.auth(httpReq)

	resp, err := o.streamClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &openaiStream{
		body:    resp.Body,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

// openaiStream reads SSE events off the response body. aborted is atomic:
// Abort runs on the callback goroutine while the consumer is blocked in Recv.
type openaiStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	aborted atomic.Bool
	done    bool
}

func (s *openaiStream) Recv(ctx context.Context) (domain.StreamChunk, error) {
	if s.aborted.Load() {
		return domain.StreamChunk{}, domain.ErrAborted
	}
	if s.done {
		return domain.StreamChunk{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return domain.StreamChunk{}, err
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			return domain.StreamChunk{Done: true}, nil
		}

		var event openaiResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return domain.StreamChunk{}, fmt.Errorf("decode event: %w", err)
		}
		if len(event.Choices) == 0 {
			continue
		}

		choice := event.Choices[0]
		chunk := domain.StreamChunk{Done: choice.FinishReason != ""}
		if choice.Delta.ReasoningContent != "" {
			chunk.Thinking = true
			chunk.Content = choice.Delta.ReasoningContent
		} else {
			chunk.Content = choice.Delta.Content
		}
		if chunk.Done {
			s.done = true
		}
		return chunk, nil
	}

	if s.aborted.Load() {
		return domain.StreamChunk{}, domain.ErrAborted
	}
	if err := s.scanner.Err(); err != nil {
		return domain.StreamChunk{}, err
	}
	s.done = true
	return domain.StreamChunk{}, io.EOF
}

// Abort sets the flag before closing the body so a failing scan reports
// ErrAborted instead of the transport error.
func (s *openaiStream) Abort() {
	s.aborted.Store(true)
	s.cancel()
	s.body.Close()
}

// Complete runs a non-streaming chat completion.
func (o *OpenAI) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	jsonBody, err := o.buildBody(req, false)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	o.auth(httpReq)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

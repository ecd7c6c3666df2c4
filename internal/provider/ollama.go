package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"talkbot/internal/domain"
)

const (
	ollamaDefaultBase  = "http://localhost:11434"
	ollamaDefaultModel = "llama3.1:8b"
)

// Ollama implements domain.ModelBackend against the Ollama HTTP API.
type Ollama struct {
	apiBase      string
	defaultModel string
	client       *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

type OllamaConfig struct {
	APIBase      string
	DefaultModel string
	Logger       *slog.Logger
}

func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.APIBase == "" {
		cfg.APIBase = ollamaDefaultBase
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = ollamaDefaultModel
	}
	return &Ollama{
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		defaultModel: cfg.DefaultModel,
		client:       newHTTPClient(),
		streamClient: newStreamingClient(),
		logger:       cfg.Logger,
	}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// ollamaRequest matches the Ollama /api/chat request body.
type ollamaRequest struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
	Think    *bool       `json:"think,omitempty"`
}

type ollamaMsg struct {
	Role     string   `json:"role"`
	Content  string   `json:"content"`
	Thinking string   `json:"thinking,omitempty"`
	Images   []string `json:"images,omitempty"` // base64
}

type ollamaResponse struct {
	Message    ollamaMsg `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
}

func (o *Ollama) buildBody(req domain.ChatRequest, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]ollamaMsg, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMsg{Role: m.Role, Content: m.Content, Images: m.Images})
	}

	body := ollamaRequest{Model: model, Messages: msgs, Stream: stream}
	if req.Think {
		t := true
		body.Think = &t
	}
	return json.Marshal(body)
}

// ChatStream opens a streaming chat exchange. Chunks arrive as NDJSON and
// are decoded lazily, one per Recv.
func (o *Ollama) ChatStream(ctx context.Context, req domain.ChatRequest) (domain.ChatStream, error) {
	jsonBody, err := o.buildBody(req, true)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(streamCtx, "POST", o.apiBase+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.streamClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	return &ollamaStream{
		body:    resp.Body,
		decoder: json.NewDecoder(resp.Body),
		cancel:  cancel,
	}, nil
}

// ollamaStream is a pull-based reader over the NDJSON chat response. Some
// models report their reasoning through the message thinking field, others
// inline it between <think> sentinels; both surface as Thinking chunks.
// aborted is atomic: Abort runs on the callback goroutine while the consumer
// is blocked in Recv, and a decode failing because the body closed must
// surface as ErrAborted, not as the transport error.
type ollamaStream struct {
	body    io.ReadCloser
	decoder *json.Decoder
	cancel  context.CancelFunc
	inThink bool
	aborted atomic.Bool
	done    bool
}

func (s *ollamaStream) Recv(ctx context.Context) (domain.StreamChunk, error) {
	if s.aborted.Load() {
		return domain.StreamChunk{}, domain.ErrAborted
	}
	if s.done {
		return domain.StreamChunk{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return domain.StreamChunk{}, err
	}

	var raw ollamaResponse
	if err := s.decoder.Decode(&raw); err != nil {
		if s.aborted.Load() {
			return domain.StreamChunk{}, domain.ErrAborted
		}
		if err == io.EOF {
			s.done = true
		}
		return domain.StreamChunk{}, err
	}

	chunk := domain.StreamChunk{Done: raw.Done}
	if raw.Done {
		s.done = true
	}

	content := raw.Message.Content
	switch {
	case raw.Message.Thinking != "":
		chunk.Thinking = true
		chunk.Content = raw.Message.Thinking
	case strings.Contains(content, "<think>"):
		s.inThink = true
		chunk.Thinking = true
		chunk.Content = strings.TrimSpace(strings.ReplaceAll(content, "<think>", ""))
	case strings.Contains(content, "</think>"):
		s.inThink = false
		chunk.Content = strings.TrimSpace(strings.ReplaceAll(content, "</think>", ""))
		chunk.Thinking = chunk.Content == ""
	case s.inThink:
		chunk.Thinking = true
		chunk.Content = content
	default:
		chunk.Content = content
	}

	return chunk, nil
}

// Abort tears the stream down. Safe to call concurrently with Recv; the flag
// is set before the body closes so the failing decode reports ErrAborted.
func (s *ollamaStream) Abort() {
	s.aborted.Store(true)
	s.cancel()
	s.body.Close()
}

// Complete runs a non-streaming exchange with retry on transient failures.
func (o *Ollama) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	jsonBody, err := o.buildBody(req, false)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			o.logger.Warn("retrying ollama request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/api/chat", bytes.NewReader(jsonBody))
		if err != nil {
			return "", fmt.Errorf("new request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
		}

		var out ollamaResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			continue
		}
		return out.Message.Content, nil
	}

	return "", fmt.Errorf("ollama request (after %d retries): %w", maxRetries, lastErr)
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the models installed on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type ollamaShowResponse struct {
	Capabilities []string `json:"capabilities"`
}

// Show fetches a model's metadata, including its capability list.
func (o *Ollama) Show(ctx context.Context, model string) (*domain.ModelInfo, error) {
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/api/show", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("show model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("show model %q: status %d", model, resp.StatusCode)
	}

	var show ollamaShowResponse
	if err := json.NewDecoder(resp.Body).Decode(&show); err != nil {
		return nil, fmt.Errorf("decode model info: %w", err)
	}
	return &domain.ModelInfo{Name: model, Capabilities: show.Capabilities}, nil
}

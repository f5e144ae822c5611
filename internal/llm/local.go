package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

// LocalProvider talks to a local HTTP JSON model server (e.g. Ollama),
// grounded in sse-rag-service.streamGeneration / unified-rag-service's
// streamFromOllama: POST a prompt, decode a stream of NDJSON frames
// carrying incremental "response" tokens and a terminal "done" flag.
type LocalProvider struct {
	BaseURL string
	HTTP    *http.Client
}

func NewLocalProvider(baseURL string, timeout time.Duration) *LocalProvider {
	return &LocalProvider{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

type localGenerateRequest struct {
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	Stream      bool           `json:"stream"`
	Temperature float64        `json:"temperature"`
	Options     map[string]any `json:"options,omitempty"`
}

type localGenerateFrame struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	EvalCount       int `json:"eval_count"`
	PromptEvalCount int `json:"prompt_eval_count"`
}

func messagesToPrompt(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("assistant: ")
	return b.String()
}

func (p *LocalProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, *Usage, error) {
	return p.Generate(ctx, messagesToPrompt(messages), opts)
}

func (p *LocalProvider) Generate(ctx context.Context, prompt string, opts ChatOptions) (string, *Usage, error) {
	ch, err := p.stream(ctx, prompt, opts)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	var usage Usage
	for frame := range ch {
		if frame.Err != nil {
			return "", nil, frame.Err
		}
		sb.WriteString(frame.Token)
		if frame.Done {
			break
		}
	}
	return sb.String(), &usage, nil
}

func (p *LocalProvider) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamChunk, error) {
	return p.stream(ctx, messagesToPrompt(messages), opts)
}

func (p *LocalProvider) GenerateStream(ctx context.Context, prompt string, opts ChatOptions) (<-chan StreamChunk, error) {
	return p.stream(ctx, prompt, opts)
}

// stream issues the request and returns a channel of decoded frames. The
// caller's ctx cancellation aborts the in-flight HTTP request. Breaking out
// of the range loop does not by itself cancel anything: a consumer that
// stops reading early cancels ctx, after which the goroutine stops sending
// and its defer closes the response body.
func (p *LocalProvider) stream(ctx context.Context, prompt string, opts ChatOptions) (<-chan StreamChunk, error) {
	reqBody, err := json.Marshal(localGenerateRequest{
		Model:       opts.Model,
		Prompt:      prompt,
		Stream:      true,
		Temperature: opts.Temperature,
		Options:     map[string]any{"num_predict": opts.MaxTokens},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMError, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/generate", p.BaseURL), bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMError, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMError, "request failed", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, apperr.New(apperr.CodeLLMError, fmt.Sprintf("model server returned %d", resp.StatusCode))
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		decoder := json.NewDecoder(resp.Body)
		for {
			var frame localGenerateFrame
			if err := decoder.Decode(&frame); err != nil {
				if err == io.EOF {
					return
				}
				select {
				case out <- StreamChunk{Err: apperr.Wrap(apperr.CodeLLMError, "stream decode failed", err)}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- StreamChunk{Token: frame.Response, Done: frame.Done}:
			case <-ctx.Done():
				return
			}
			if frame.Done {
				return
			}
		}
	}()
	return out, nil
}

func (p *LocalProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeLLMError, "health check failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperr.New(apperr.CodeLLMError, "model server unhealthy")
	}
	return nil
}

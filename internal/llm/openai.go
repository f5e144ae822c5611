package llm

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

// CloudProvider wraps the go-openai SDK (retrieval pack:
// PerceptivePenguin-MCPRAG-Go) as the second LLM backend spec.md §6
// requires alongside the local HTTP provider.
type CloudProvider struct {
	client *openai.Client
}

func NewCloudProvider(apiKey, baseURL string) *CloudProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &CloudProvider{client: openai.NewClientWithConfig(cfg)}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (p *CloudProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, *Usage, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeLLMError, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, apperr.New(apperr.CodeLLMError, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, &Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (p *CloudProvider) Generate(ctx context.Context, prompt string, opts ChatOptions) (string, *Usage, error) {
	return p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

func (p *CloudProvider) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamChunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMError, "chat stream failed", err)
	}
	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				out <- StreamChunk{Done: true}
				return
			}
			if err != nil {
				select {
				case out <- StreamChunk{Err: apperr.Wrap(apperr.CodeLLMError, "stream recv failed", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			select {
			case out <- StreamChunk{Token: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *CloudProvider) GenerateStream(ctx context.Context, prompt string, opts ChatOptions) (<-chan StreamChunk, error) {
	return p.ChatStream(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

func (p *CloudProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		return apperr.Wrap(apperr.CodeLLMError, "health check failed", err)
	}
	return nil
}

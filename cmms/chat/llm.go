package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Message mirrors the stored chat history rows; Role is "user" or "assistant",
// plus "system" for the generated context prompt.
type Message struct {
	Role    string
	Content string
}

type LLM interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// FallbackReply is returned to the widget whenever the provider fails. The
// original widget contract treats this as a normal reply, not an error.
const FallbackReply = "The maintenance assistant is temporarily unavailable. Please try again in a few minutes, or create a work order directly."

// Unavailable is used when no provider is configured. Every request takes the
// fallback path.
type Unavailable struct{}

func (Unavailable) Generate(ctx context.Context, messages []Message) (string, error) {
	return "", fmt.Errorf("no chat provider configured")
}

const defaultTimeout = 60 * time.Second

type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM(apiKey, model string) *OpenAILLM {
	if model == "" {
		model = openai.GPT4oMini
	}
	client := openai.NewClient(apiKey)
	return &OpenAILLM{client: client, model: model}
}

func (l *OpenAILLM) Generate(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    l.model,
		Messages: chatMessages,
	})
	if err != nil {
		return "", fmt.Errorf("error calling chat completion api: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion api returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const classifierInstruction = "You judge whether a spoken utterance is a finished thought. " +
	"Reply with exactly one word: COMPLETE if the speaker is done talking, " +
	"INCOMPLETE if they appear to be mid-sentence or trailing off."

// OpenAIClassifier asks a chat model for a COMPLETE/INCOMPLETE judgment.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClassifier builds a classifier over an existing API client.
func NewOpenAIClassifier(client *openai.Client, model string, timeout time.Duration) *OpenAIClassifier {
	return &OpenAIClassifier{client: client, model: model, timeout: timeout}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, transcript string) (bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierInstruction},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return false, fmt.Errorf("classify transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, errors.New("classifier returned no choices")
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch {
	case strings.HasPrefix(answer, "INCOMPLETE"):
		return false, nil
	case strings.HasPrefix(answer, "COMPLETE"):
		return true, nil
	default:
		return false, fmt.Errorf("unrecognized classifier answer %q", answer)
	}
}

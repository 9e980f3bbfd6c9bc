package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap"
)

const gptPrompt = `You are a command parser for an email management chatbot. Parse the user's natural language input and return a JSON object.

Available actions:
- read_emails: Fetch recent emails
- generate_replies: Generate AI replies for the fetched emails
- send_reply: Send a generated reply to a specific email
- delete_email: Delete an email by number, sender, or subject
- categorize_inbox: Group emails into categories
- daily_digest: Generate a daily summary
- unknown: Anything else

Return ONLY a valid JSON object with this structure:
{
  "action": "action_name",
  "parameters": {
    "email_id": optional email number as shown to the user,
    "sender": "optional sender",
    "subject": "optional subject keyword",
    "count": optional number
  },
  "confidence": 0.0-1.0
}

User input: %q`

// GPTClassifier asks an OpenAI chat model for the same JSON contract the
// backend parse-command endpoint returns.
type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	return NewGPTClassifierWithConfig(openai.DefaultConfig(apiKey), model, maxTokens, temperature, logger)
}

func NewGPTClassifierWithConfig(cfg openai.ClientConfig, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (c *GPTClassifier) Classify(ctx context.Context, text string) (models.ParsedCommand, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(gptPrompt, text),
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return models.ParsedCommand{}, fmt.Errorf("failed to get GPT response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ParsedCommand{}, errors.New("GPT returned no choices")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)

	var cmd models.ParsedCommand
	if err := json.Unmarshal([]byte(content), &cmd); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", content))
		return models.ParsedCommand{}, fmt.Errorf("failed to parse GPT response: %w", err)
	}
	if !cmd.Action.Known() {
		cmd.Action = models.ActionUnknown
	}
	return cmd, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

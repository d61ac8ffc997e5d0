package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/desiyatra/bargainer/pkg/intent"
	"github.com/desiyatra/bargainer/pkg/resilience"
	"github.com/desiyatra/bargainer/pkg/transcript"
)

const systemPrompt = `You label one turn spoken by an Indian vendor (taxi, hotel, restaurant) during a phone price negotiation.
The turn may be Hindi, Hinglish or English.
Reply with exactly one word:
agree   - the vendor accepts the customer's last offer or says yes
decline - the vendor refuses to do the deal, says it is not possible, or tells the customer to look elsewhere
none    - anything else, including quoting a price or asking a question`

type Config struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Classifier asks a chat completion model for the vendor's intent.
type Classifier struct {
	client openaisdk.Client
	model  string
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	return &Classifier{client: openaisdk.NewClient(opts...), model: cfg.Model}
}

func (c *Classifier) Name() string { return "openai" }

func (c *Classifier) Classify(ctx context.Context, u transcript.Utterance) (intent.Intent, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(u.RawText),
		},
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		var apiErr *openaisdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return intent.None, resilience.RateLimitError{Provider: "openai", Message: apiErr.Error()}
		}
		return intent.None, err
	}
	if len(resp.Choices) == 0 {
		return intent.None, errors.New("openai: no choices")
	}
	label := resp.Choices[0].Message.Content
	got, ok := intent.Parse(label)
	if !ok {
		return intent.None, fmt.Errorf("openai: unexpected label %q", label)
	}
	return got, nil
}

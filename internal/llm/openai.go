package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
)

// ErrMissingAPIKey reports an unset API key variable.
var ErrMissingAPIKey = errors.New("llm api key is not set")

const maxChatTries = 4

// OpenAIChat implements Chat on go-openai for Azure OpenAI or OpenAI.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float32
	interval    time.Duration
	logger      *zap.SugaredLogger
}

// ChatOptions configures NewOpenAIChat beyond the config section.
type ChatOptions struct {
	Getenv     func(string) string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
	// RetryInterval is the initial backoff between retried calls.
	RetryInterval time.Duration
}

// NewOpenAIChat builds a chat client from the llm config section.
func NewOpenAIChat(cfg config.LLMConfig, opts ChatOptions) (*OpenAIChat, error) {
	getenv := opts.Getenv
	if getenv == nil {
		return nil, fmt.Errorf("getenv is required")
	}
	key := strings.TrimSpace(getenv(cfg.APIKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.APIKeyEnv)
	}
	if strings.TrimSpace(cfg.Deployment) == "" {
		return nil, fmt.Errorf("llm deployment is required")
	}

	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case config.ProviderAzureOpenAI:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("llm endpoint is required for azure_openai")
		}
		clientCfg = openai.DefaultAzureConfig(key, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Deployment
		clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
	case config.ProviderOpenAI:
		clientCfg = openai.DefaultConfig(key)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
		}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if opts.HTTPClient != nil {
		clientCfg.HTTPClient = opts.HTTPClient
	}
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &OpenAIChat{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Deployment,
		temperature: float32(cfg.Temperature),
		interval:    interval,
		logger:      logging.OrNop(opts.Logger),
	}, nil
}

// Complete sends the conversation and returns the first choice's content.
// Rate limits and server errors are retried with exponential backoff.
func (c *OpenAIChat) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.interval
	exp.Reset()
	resp, err := backoff.Retry(ctx, func() (openai.ChatCompletionResponse, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil && !retryableChatError(err) {
			return resp, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(maxChatTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Debugw("retrying chat completion", "model", c.model, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func retryableChatError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// Package ai talks to the external text-generation service and turns its raw
// output into sanitized mission payloads.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/82deutschmark/Disavowed/internal/config"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// gpt-4.1-nano pricing per million tokens, used for the cost estimate metric.
const (
	pricePerMillionInputTokensUSD  = 0.1
	pricePerMillionOutputTokensUSD = 0.4
)

// ErrTextGenerationFailed marks transport or empty-response failures from the
// generation service. Callers retry or fall back; they never surface it raw.
var ErrTextGenerationFailed = errors.New("text generation request failed")

// GenerationParams are per-request sampling overrides. Pointers distinguish
// an explicit zero from an unset value.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo reports token consumption and estimated cost for one request.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disavowed_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disavowed_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disavowed_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disavowed_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
	aiEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disavowed_ai_estimated_cost_usd_total",
			Help: "Estimated total cost of AI requests in USD.",
		},
		[]string{"model"},
	)
)

// TextGenerator is the transport-level client for the generation service.
// playerID is carried for log correlation only.
//
//go:generate mockery --name TextGenerator --output ../mocks --outpkg mocks --case=underscore
type TextGenerator interface {
	// GenerateText issues one blocking request and returns the raw response
	// text.
	GenerateText(ctx context.Context, playerID string, instructions string, input string, params GenerationParams) (string, UsageInfo, error)
	// GenerateTextStream issues one streaming request, invoking
	// fragmentHandler for every text fragment as it arrives.
	GenerateTextStream(ctx context.Context, playerID string, instructions string, input string, params GenerationParams, fragmentHandler func(string) error) (UsageInfo, error)
}

func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
}

// --- OpenAI-compatible implementation ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, playerID string, instructions string, input string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	logFields := []zap.Field{
		zap.String("model", c.model),
		zap.String("playerID", playerID),
	}

	if strings.TrimSpace(instructions) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: instructions are empty", ErrTextGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: instructions},
	}
	if input != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: input,
		})
	}

	startTime := time.Now()
	c.logger.Debug("Sending AI request",
		append(logFields, zap.Int("instructions_bytes", len(instructions)), zap.Int("input_bytes", len(input)))...)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openaigo.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: float32Val(params.Temperature),
			MaxTokens:   intVal(params.MaxTokens),
			TopP:        float32Val(params.TopP),
			ResponseFormat: &openaigo.ChatCompletionResponseFormat{
				Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("AI request failed", append(logFields, zap.Duration("duration", duration), zap.Error(err))...)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrTextGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("AI returned an empty response", append(logFields, zap.Duration("duration", duration))...)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: empty response", ErrTextGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	generatedText := resp.Choices[0].Message.Content
	c.logger.Debug("AI response received",
		append(logFields, zap.Duration("duration", duration), zap.Int("response_chars", len(generatedText)))...)

	if resp.Usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.CompletionTokens))

		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
		usageInfo.EstimatedCostUSD = calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		if usageInfo.EstimatedCostUSD > 0 {
			aiEstimatedCostUSD.With(prometheus.Labels{"model": c.model}).Add(usageInfo.EstimatedCostUSD)
		}
	}

	return generatedText, usageInfo, nil
}

func (c *openAIClient) GenerateTextStream(ctx context.Context, playerID string, instructions string, input string, params GenerationParams, fragmentHandler func(string) error) (UsageInfo, error) {
	usageInfo := UsageInfo{}
	logFields := []zap.Field{
		zap.String("model", c.model),
		zap.String("playerID", playerID),
	}

	if strings.TrimSpace(instructions) == "" {
		return usageInfo, fmt.Errorf("%w: instructions are empty", ErrTextGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: instructions},
	}
	if input != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: input,
		})
	}

	request := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Stream:      true,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	c.logger.Debug("Opening AI stream",
		append(logFields, zap.Int("instructions_bytes", len(instructions)), zap.Int("input_bytes", len(input)))...)

	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		c.logger.Warn("AI stream init failed", append(logFields, zap.Error(err))...)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_init"}).Inc()
		return usageInfo, fmt.Errorf("%w: stream init: %v", ErrTextGenerationFailed, err)
	}
	defer stream.Close()

	startTime := time.Now()
	completionTokensCount := 0
	var finalUsage openaigo.Usage
	tke, tkeErr := tiktoken.EncodingForModel(c.model)

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.logger.Warn("AI stream read failed", append(logFields, zap.Error(err))...)
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_read"}).Inc()
			return usageInfo, fmt.Errorf("%w: stream read: %v", ErrTextGenerationFailed, err)
		}

		// Usage arrives in a trailing frame on some backends.
		if response.Usage != nil && response.Usage.TotalTokens > 0 {
			finalUsage = *response.Usage
		}

		if len(response.Choices) > 0 {
			fragment := response.Choices[0].Delta.Content
			if tkeErr == nil {
				completionTokensCount += len(tke.Encode(fragment, nil, nil))
			}
			if fragmentHandler != nil && fragment != "" {
				if err := fragmentHandler(fragment); err != nil {
					// A failing consumer does not abort the upstream read;
					// the accumulated text is still needed for parsing.
					c.logger.Warn("stream fragment handler failed", append(logFields, zap.Error(err))...)
				}
			}
		}
	}

	duration := time.Since(startTime)

	if finalUsage.TotalTokens > 0 {
		usageInfo.PromptTokens = finalUsage.PromptTokens
		usageInfo.CompletionTokens = finalUsage.CompletionTokens
		usageInfo.TotalTokens = finalUsage.TotalTokens
		usageInfo.EstimatedCostUSD = calculateCost(finalUsage.PromptTokens, finalUsage.CompletionTokens)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
		aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(finalUsage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(finalUsage.CompletionTokens))
		if usageInfo.EstimatedCostUSD > 0 {
			aiEstimatedCostUSD.With(prometheus.Labels{"model": c.model}).Add(usageInfo.EstimatedCostUSD)
		}
	} else if tkeErr == nil {
		// No trailing usage frame; estimate from the tokenizer.
		promptTokensCount := len(tke.Encode(instructions, nil, nil)) + len(tke.Encode(input, nil, nil))
		usageInfo.PromptTokens = promptTokensCount
		usageInfo.CompletionTokens = completionTokensCount
		usageInfo.TotalTokens = promptTokensCount + completionTokensCount
		usageInfo.EstimatedCostUSD = calculateCost(promptTokensCount, completionTokensCount)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream_estimated"}).Inc()
		aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(promptTokensCount))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(completionTokensCount))
	} else {
		c.logger.Warn("no tokenizer for model, skipping stream token metrics", logFields...)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream_no_tokens"}).Inc()
		aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
	}

	c.logger.Debug("AI stream finished", append(logFields, zap.Duration("duration", duration))...)
	return usageInfo, nil
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// --- Ollama implementation ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (TextGenerator, error) {
	httpClient := &http.Client{
		Timeout: cfg.AITimeout,
	}

	// The native Ollama API wants the base URL without the /v1 suffix.
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama base URL %q: %w", ollamaBaseURL, err)
	}

	client := api.NewClient(parsedURL, httpClient)

	logger.Info("Ollama client created",
		zap.String("base_url", ollamaBaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))

	return &ollamaClient{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, playerID string, instructions string, input string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{EstimatedCostUSD: 0}
	logFields := []zap.Field{
		zap.String("model", c.model),
		zap.String("playerID", playerID),
	}

	if strings.TrimSpace(instructions) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: instructions are empty", ErrTextGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: instructions},
	}
	if input != "" {
		messages = append(messages, api.Message{Role: "user", Content: input})
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama request timed out",
				append(logFields, zap.Duration("timeout", c.timeout), zap.Duration("duration", duration))...)
		} else {
			c.logger.Warn("Ollama request failed", append(logFields, zap.Duration("duration", duration), zap.Error(err))...)
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrTextGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		c.logger.Warn("Ollama returned an empty response", append(logFields, zap.Duration("duration", duration))...)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: empty response", ErrTextGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usageInfo.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.CompletionTokens))
	}

	return resp.Message.Content, usageInfo, nil
}

func (c *ollamaClient) GenerateTextStream(ctx context.Context, playerID string, instructions string, input string, params GenerationParams, fragmentHandler func(string) error) (UsageInfo, error) {
	usageInfo := UsageInfo{EstimatedCostUSD: 0}
	logFields := []zap.Field{
		zap.String("model", c.model),
		zap.String("playerID", playerID),
	}

	if strings.TrimSpace(instructions) == "" {
		return usageInfo, fmt.Errorf("%w: instructions are empty", ErrTextGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: instructions},
	}
	if input != "" {
		messages = append(messages, api.Message{Role: "user", Content: input})
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(true),
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var promptTokens, completionTokens int

	err := c.client.Chat(requestCtx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" && fragmentHandler != nil {
			if err := fragmentHandler(resp.Message.Content); err != nil {
				return fmt.Errorf("stream fragment handler: %w", err)
			}
		}
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
			if resp.DoneReason != "" && resp.DoneReason != "stop" {
				c.logger.Warn("Ollama stream ended with unexpected reason",
					append(logFields, zap.String("done_reason", resp.DoneReason))...)
			}
		}
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama stream timed out",
				append(logFields, zap.Duration("timeout", c.timeout), zap.Duration("duration", duration))...)
		} else {
			c.logger.Warn("Ollama stream failed", append(logFields, zap.Duration("duration", duration), zap.Error(err))...)
		}
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream"}).Inc()
		return usageInfo, fmt.Errorf("%w: %v", ErrTextGenerationFailed, err)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	if promptTokens > 0 || completionTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(promptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(completionTokens))
	}

	usageInfo.PromptTokens = promptTokens
	usageInfo.CompletionTokens = completionTokens
	usageInfo.TotalTokens = promptTokens + completionTokens

	return usageInfo, nil
}

// --- Factory ---

// NewTextGenerator builds the configured transport client.
func NewTextGenerator(cfg *config.Config, logger *zap.Logger) (TextGenerator, error) {
	clientLogger := logger.Named("ai_client")
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{
			Timeout: cfg.AITimeout,
		}
		client := openaigo.NewClientWithConfig(openaiConfig)
		clientLogger.Info("OpenAI client created",
			zap.String("base_url", cfg.AIBaseURL),
			zap.String("model", cfg.AIModel),
			zap.Duration("timeout", cfg.AITimeout))
		return &openAIClient{
			client: client,
			model:  cfg.AIModel,
			logger: clientLogger,
		}, nil
	case "ollama":
		return newOllamaClient(cfg, clientLogger)
	default:
		return nil, fmt.Errorf("unknown AI client type: %q", cfg.AIClientType)
	}
}

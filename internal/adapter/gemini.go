package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"promptduel/internal/eval"
	"promptduel/internal/logging"
)

// contentGenerator is the slice of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient sends rendered prompts to the Gemini API, paced by a limiter.
type GeminiClient struct {
	models  contentGenerator
	model   string
	limiter *rate.Limiter
}

// NewGeminiClient creates a Gemini client allowing rps requests per second.
func NewGeminiClient(ctx context.Context, apiKey, model string, rps float64) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGeminiClient(client.Models, model, rps), nil
}

func newGeminiClient(models contentGenerator, model string, rps float64) *GeminiClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &GeminiClient{
		models:  models,
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Complete implements ModelClient. Waiting on the limiter does not count
// against timeout.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := c.models.GenerateContent(callCtx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		logging.EvalDebug("gemini call failed: %v", err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// Describe implements ModelClient.
func (c *GeminiClient) Describe() []eval.HeaderField {
	rps := "unlimited"
	if l := c.limiter.Limit(); l != rate.Inf {
		rps = strconv.FormatFloat(float64(l), 'f', -1, 64)
	}
	return []eval.HeaderField{
		{Key: "backend", Value: "gemini"},
		{Key: "model", Value: c.model},
		{Key: "requests_per_second", Value: rps},
	}
}

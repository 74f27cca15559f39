// Package gemini provides a client for the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// ModelName is the Gemini model used for expense extraction.
const ModelName = "gemini-2.5-flash"

// DefaultTimeout bounds every Gemini call unless overridden.
const DefaultTimeout = 15 * time.Second

var (
	// ErrExtractionFailed covers unreachable service, timeouts and malformed output.
	ErrExtractionFailed = errors.New("expense extraction failed")
	// ErrExtractionTimeout indicates the Gemini call exceeded its deadline.
	// It always wraps ErrExtractionFailed.
	ErrExtractionTimeout = fmt.Errorf("%w: timed out", ErrExtractionFailed)
)

// ContentGenerator defines the interface for generating content via Gemini.
// This abstraction enables testing without making actual API calls.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// modelsAdapter wraps *genai.Models to implement ContentGenerator.
type modelsAdapter struct {
	models *genai.Models
}

func (m *modelsAdapter) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	resp, err := m.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("genai.GenerateContent: %w", err)
	}
	return resp, nil
}

// Client wraps the Gemini API client.
type Client struct {
	generator ContentGenerator
	timeout   time.Duration
}

// NewClient creates a new Gemini client with the provided API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		generator: &modelsAdapter{models: client.Models},
		timeout:   DefaultTimeout,
	}, nil
}

// NewClientWithGenerator creates a Client with a custom ContentGenerator.
// This is primarily used for testing with mock generators.
func NewClientWithGenerator(generator ContentGenerator) *Client {
	return &Client{
		generator: generator,
		timeout:   DefaultTimeout,
	}
}

// SetTimeout changes the per-call deadline. Non-positive values are ignored.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// generateJSON sends prompt with a JSON response schema and returns the
// extracted JSON object text.
func (c *Client) generateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if c.generator == nil {
		return "", fmt.Errorf("%w: gemini client not initialized", ErrExtractionFailed)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	temp := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(300),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API. You MUST respond with ONLY valid JSON, no preamble or explanation. Output a single JSON object."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := c.generator.GenerateContent(timeoutCtx, ModelName, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return "", ErrExtractionTimeout
		}
		return "", fmt.Errorf("%w: gemini API call failed: %w", ErrExtractionFailed, err)
	}

	if resp == nil {
		return "", fmt.Errorf("%w: no response from Gemini", ErrExtractionFailed)
	}

	// Text() concatenates the text parts of the first candidate.
	fullText := resp.Text()
	if fullText == "" {
		return "", fmt.Errorf("%w: no text content in response", ErrExtractionFailed)
	}

	jsonText := extractJSON(fullText)
	if jsonText == "" {
		return "", fmt.Errorf("%w: no JSON found in response", ErrExtractionFailed)
	}
	return jsonText, nil
}

package gemini

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// mockGenerator returns a canned response and records the last request.
type mockGenerator struct {
	response *genai.GenerateContentResponse
	err      error

	mu     sync.Mutex
	calls  int
	prompt string
	config *genai.GenerateContentConfig
}

func (m *mockGenerator) GenerateContent(
	_ context.Context,
	_ string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		m.prompt = contents[0].Parts[0].Text
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockGenerator) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompt
}

func (m *mockGenerator) lastConfig() *genai.GenerateContentConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: text},
					},
				},
			},
		},
	}
}

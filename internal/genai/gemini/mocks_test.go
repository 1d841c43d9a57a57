package gemini

import (
	"context"

	"google.golang.org/genai"
)

// --- Mocks ---

type mockGenerator struct {
	calls       int
	lastModel   string
	lastParts   []*genai.Part
	lastConfig  *genai.GenerateContentConfig
	hadDeadline bool

	resp *genai.GenerateContentResponse
	err  error
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	m.lastModel = model
	if len(contents) > 0 {
		m.lastParts = contents[0].Parts
	}
	m.lastConfig = config
	_, m.hadDeadline = ctx.Deadline()
	return m.resp, m.err
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}}},
			},
		}},
	}
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiAnalyzer asks a Gemini model for the monthly analysis.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, snap *Snapshot) (string, error) {
	prompt, err := analysisPrompt(snap)
	if err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String(), nil
}

func analysisPrompt(snap *Snapshot) (string, error) {
	perfs, err := json.MarshalIndent(snap.Agents, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode performances: %w", err)
	}
	team, err := json.MarshalIndent(snap.Team, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode team totals: %w", err)
	}

	return fmt.Sprintf(`You are an assistant that analyses the performance of field agents for an event staffing company.

Performance data for %s:

%s

Team totals:
%s

Based on this data, return a complete analysis as JSON with this structure:

{
  "top_performer": {
    "name": "Agent name",
    "highlights": ["Key achievement 1", "Key achievement 2", "Key achievement 3"],
    "improvement_areas": ["Area 1", "Area 2"]
  },
  "team_insights": {
    "strengths": ["Strength 1", "Strength 2", "Strength 3"],
    "challenges": ["Challenge 1", "Challenge 2"],
    "trends": ["Trend 1", "Trend 2"]
  },
  "recommendations": ["Recommendation 1", "Recommendation 2", "Recommendation 3"]
}

Keep the analysis specific and grounded in the data. Reply ONLY with the JSON object and no other text.`,
		snap.Month, perfs, team), nil
}

package summary

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"

	"github.com/kmch/dictation-gateway/internal/config"
)

const summaryPromptFormat = `Create a structured medical summary in JSON.
Text: %s

Format:
{
  "summary": "",
  "medical_condition": "",
  "treatment_plan": "",
  "followup_date": ""
}`

// GeminiSummarizer implements Summarizer using Google's Gemini API
type GeminiSummarizer struct {
	model  *genai.GenerativeModel
	logger zerolog.Logger
}

// NewGeminiSummarizer creates a summarizer backed by the configured model
func NewGeminiSummarizer(client *genai.Client, cfg *config.Config, logger zerolog.Logger) *GeminiSummarizer {
	model := client.GenerativeModel(cfg.GeminiModel)
	model.GenerationConfig.SetTemperature(0.1)
	return &GeminiSummarizer{
		model:  model,
		logger: logger,
	}
}

// Summarize extracts structured fields from the transcript. The returned
// Data is always usable: on any failure it carries placeholder fields and
// the error describes what went wrong.
func (g *GeminiSummarizer) Summarize(ctx context.Context, transcript string) (Data, error) {
	prompt := fmt.Sprintf(summaryPromptFormat, transcript)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Placeholder(transcript), fmt.Errorf("summary generation failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return Placeholder(transcript), fmt.Errorf("summary generation returned no text")
	}

	data, err := ExtractJSON(text)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Summary response was not parseable JSON, using placeholders")
		return Placeholder(transcript), nil
	}

	return data, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out
}

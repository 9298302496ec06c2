package transcribe

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"

	"github.com/kmch/dictation-gateway/internal/config"
)

const transcribePrompt = `Please transcribe this audio file with high accuracy. ` +
	`This is a doctor making clinical notes about a patient.`

const translatePromptFormat = `Translate the following medical transcription to English.
Text:
%s`

// Result holds the outcome of a whole-file transcription
type Result struct {
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
}

// FileTranscriber transcribes a complete audio recording and translates
// the transcript to English
type FileTranscriber interface {
	TranscribeFile(ctx context.Context, audio []byte, mimeType string) (Result, error)
}

// GeminiTranscriber implements FileTranscriber using Google's Gemini API.
// Audio is passed inline; uploaded clinical notes are short recordings,
// well under the inline payload limit.
type GeminiTranscriber struct {
	model  *genai.GenerativeModel
	logger zerolog.Logger
}

// NewGeminiTranscriber creates a transcriber backed by the configured model
func NewGeminiTranscriber(client *genai.Client, cfg *config.Config, logger zerolog.Logger) *GeminiTranscriber {
	model := client.GenerativeModel(cfg.GeminiModel)
	model.GenerationConfig.SetTemperature(0.1)
	return &GeminiTranscriber{
		model:  model,
		logger: logger,
	}
}

// TranscribeFile transcribes the audio and translates the result to English
func (g *GeminiTranscriber) TranscribeFile(ctx context.Context, audio []byte, mimeType string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("empty audio payload")
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	resp, err := g.model.GenerateContent(ctx,
		genai.Text(transcribePrompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
	if err != nil {
		return Result{}, fmt.Errorf("transcription failed: %w", err)
	}

	transcript := responseText(resp)
	if transcript == "" {
		return Result{}, fmt.Errorf("transcription returned no text")
	}

	translation, err := g.translate(ctx, transcript)
	if err != nil {
		// The transcript alone is still valuable; fall back to it
		g.logger.Warn().Err(err).Msg("Translation failed, using transcript verbatim")
		translation = transcript
	}

	return Result{
		Transcript:  transcript,
		Translation: translation,
	}, nil
}

// translate renders the transcript into English
func (g *GeminiTranscriber) translate(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(translatePromptFormat, transcript)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}

	translation := responseText(resp)
	if translation == "" {
		return "", fmt.Errorf("translation returned no text")
	}
	return translation, nil
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

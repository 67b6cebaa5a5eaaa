package gemini

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/transcription"
	"google.golang.org/genai"
)

// ProviderName is the registry name of this provider.
const ProviderName = "gemini"

// maxInlineBytes is the request size limit for inline audio data.
const maxInlineBytes = 20 * 1024 * 1024

//go:embed prompts/audio.tmpl
var promptFS embed.FS

// Config contains the settings needed to reach the Gemini API.
type Config struct {
	APIKey string
	Model  string
}

// contentGenerator is the subset of the genai Models service used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// promptData represents the data passed to the prompt template
type promptData struct {
	Translate bool
	Prompt    string
}

// Transcriber implements the transcription.Provider interface using
// Google's Gemini API.
type Transcriber struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models performs GenerateContent calls
	models contentGenerator

	// model is the name of the Gemini model to use
	model string

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template
}

var _ transcription.Provider = (*Transcriber)(nil)

// NewTranscriber creates a new Transcriber backed by a genai client.
//
// Parameters:
//   - ctx: Context for client initialization
//   - logger: A structured logger for operation logging
//   - config: API key and model name
//
// Returns:
//   - A properly initialized Transcriber or an error if initialization fails
func NewTranscriber(ctx context.Context, logger *slog.Logger, config Config) (*Transcriber, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newTranscriber(client.Models, config.Model, logger)
}

// newTranscriber wires a Transcriber around any contentGenerator.
func newTranscriber(models contentGenerator, model string, logger *slog.Logger) (*Transcriber, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	promptTemplate, err := template.ParseFS(promptFS, "prompts/audio.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	return &Transcriber{
		logger:         logger.With("component", "gemini_transcriber"),
		models:         models,
		model:          model,
		promptTemplate: promptTemplate,
	}, nil
}

// Name implements transcription.Provider.
func (t *Transcriber) Name() string {
	return ProviderName
}

// Transcribe returns the text spoken in the audio file.
func (t *Transcriber) Transcribe(ctx context.Context, req transcription.Request) (string, error) {
	return t.generate(ctx, req, false)
}

// Translate returns an English translation of the audio file.
func (t *Transcriber) Translate(ctx context.Context, req transcription.Request) (string, error) {
	return t.generate(ctx, req, true)
}

// createPrompt renders the instruction prompt for one request.
//
// Parameters:
//   - translate: Whether the result must be English
//   - userPrompt: Optional guidance supplied by the caller
//
// Returns:
//   - The generated prompt string
//   - An error if template execution fails
func (t *Transcriber) createPrompt(translate bool, userPrompt string) (string, error) {
	var buf bytes.Buffer
	data := promptData{Translate: translate, Prompt: strings.TrimSpace(userPrompt)}
	if err := t.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// generate makes a single GenerateContent call with the audio attached
// inline and extracts the text of the first candidate.
//
// Parameters:
//   - ctx: Context for the operation, used for cancellation and logging
//   - req: The audio file and optional prompt
//   - translate: Whether to request an English translation
//
// Returns:
//   - The transcript text
//   - A domain.ProviderError when the API fails or returns no usable text
func (t *Transcriber) generate(ctx context.Context, req transcription.Request, translate bool) (string, error) {
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) > maxInlineBytes {
		return "", &domain.ProviderError{Provider: ProviderName, Message: ErrFileTooLarge.Error()}
	}

	prompt, err := t.createPrompt(translate, req.Prompt)
	if err != nil {
		return "", err
	}

	mimeType := mimetype.Detect(data).String()
	if !strings.HasPrefix(mimeType, "audio/") {
		mimeType = "audio/mpeg"
	}

	t.logger.InfoContext(ctx, "Making Gemini API call",
		"model", t.model,
		"translate", translate,
		"mime_type", mimeType,
		"audio_bytes", len(data))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	resp, err := t.models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		t.logger.ErrorContext(ctx, "Gemini API call error", "error", err)
		return "", &domain.ProviderError{Provider: ProviderName, Message: err.Error()}
	}

	text, err := extractText(resp)
	if err != nil {
		t.logger.WarnContext(ctx, "Gemini API returned no usable text", "error", err)
		return "", &domain.ProviderError{Provider: ProviderName, Message: err.Error()}
	}

	t.logger.InfoContext(ctx, "Gemini API call successful", "text_length", len(text))
	return text, nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", errors.New("nil response")
	case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	case len(resp.Candidates) == 0:
		return "", errors.New("no content generated")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", errors.New("content blocked by safety filters")
	}
	if candidate.Content == nil {
		return "", errors.New("empty content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("empty text in response")
	}
	return text, nil
}

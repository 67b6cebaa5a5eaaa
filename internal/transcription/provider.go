package transcription

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/phrazzld/mediajobs/internal/domain"
)

// Mode selects what a provider does with the audio.
type Mode string

const (
	// ModeTranscribe returns text in the spoken language.
	ModeTranscribe Mode = "transcribe"
	// ModeTranslate returns English text.
	ModeTranslate Mode = "translate"
)

// Request describes one provider call.
type Request struct {
	// FilePath is the local audio file to send.
	FilePath string
	// Prompt optionally guides the provider's style or vocabulary.
	Prompt string
	// APIKey overrides the provider's configured key when set.
	APIKey string
}

// Provider turns audio into text.
type Provider interface {
	// Name identifies the provider in requests and logs.
	Name() string
	// Transcribe returns the text spoken in the audio.
	Transcribe(ctx context.Context, req Request) (string, error)
	// Translate returns an English translation of the audio.
	Translate(ctx context.Context, req Request) (string, error)
}

// Run dispatches req to p according to mode.
func Run(ctx context.Context, p Provider, mode Mode, req Request) (string, error) {
	switch mode {
	case ModeTranscribe:
		return p.Transcribe(ctx, req)
	case ModeTranslate:
		return p.Translate(ctx, req)
	default:
		return "", fmt.Errorf("unsupported transcription mode %q", mode)
	}
}

// Registry holds the configured providers.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

// NewRegistry creates a registry. defaultName must match one of providers.
func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers:   make(map[string]Provider, len(providers)),
		defaultName: strings.ToLower(defaultName),
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[strings.ToLower(p.Name())] = p
	}
	if _, ok := r.providers[r.defaultName]; !ok {
		return nil, fmt.Errorf("default transcription provider %q is not configured", defaultName)
	}
	return r, nil
}

// Get returns the provider called name, or the default for an empty name.
// Unknown names are validation errors.
func (r *Registry) Get(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewValidationError("provider",
			fmt.Sprintf("unknown provider %q, expected one of %s", name, strings.Join(r.Names(), ", ")))
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Default returns the name of the default provider.
func (r *Registry) Default() string {
	return r.defaultName
}

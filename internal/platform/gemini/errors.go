package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the transcriber cannot be constructed.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrFileTooLarge is returned when the audio exceeds the inline request limit.
	ErrFileTooLarge = errors.New("audio file exceeds the inline request limit")
)

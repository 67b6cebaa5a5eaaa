// Package transcription defines the boundary to audio-to-text providers and
// a registry that selects a provider by name.
package transcription

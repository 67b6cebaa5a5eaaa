// Package openai implements transcription.Provider against a Whisper
// compatible HTTP API. Audio is streamed as a multipart upload.
package openai

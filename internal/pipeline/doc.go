// Package pipeline holds the job bodies run by the task runner: the audio
// pipeline (size gate, then provider) and the download pipeline (fetch,
// package, health check, token, upload).
package pipeline

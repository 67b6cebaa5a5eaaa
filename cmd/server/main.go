// Package main implements the mediajobs server: an HTTP service that accepts
// transcription, translation and media download requests, runs them as
// background jobs and exposes their status for polling.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

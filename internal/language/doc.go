// Package language detects the spoken language of an audio file with a
// local whisper.cpp binary.
package language

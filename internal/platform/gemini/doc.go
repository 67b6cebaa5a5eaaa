// Package gemini provides an implementation of the transcription.Provider
// interface that uses Google's Gemini API to turn audio into text.
//
// This package is an infrastructure adapter, connecting the pipeline to
// Google's external Gemini service without exposing the details of the
// genai SDK to the rest of the application.
//
// Key components:
//
// 1. Transcriber:
//   - Implements the transcription.Provider interface
//   - Sends audio inline together with an instruction prompt
//   - Converts candidate text parts into a single transcript
//
// 2. Prompt Management:
//   - Embeds the instruction template in the binary
//   - Substitutes the mode and the caller's optional prompt
//
// 3. Error Handling:
//   - Wraps API failures, empty candidates and safety blocks in
//     domain.ProviderError so jobs fail with a descriptive message
//   - Never retries: provider calls are single attempt
package gemini

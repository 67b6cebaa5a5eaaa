// Package encode implements the size gate that runs before audio is handed to
// a transcription provider. Files at or above the threshold are re-encoded
// with an external encoder and verified again; the outcome is a Result value
// rather than an error so callers decide how a failed gate ends the job.
package encode

// Package process runs external binaries such as the audio encoder and the
// language detector. Commands are argument slices, never shell strings, and
// every run is bounded by a timeout.
package process

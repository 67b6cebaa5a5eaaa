// Package archive packages downloaded files into a zip archive inside a
// per-job temporary directory. The directory and the archive are removed
// when packaging ends, whatever the outcome.
package archive

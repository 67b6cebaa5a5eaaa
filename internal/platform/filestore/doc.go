// Package filestore talks to the archive destination service: a health
// check and a streamed multipart upload that returns the stored file URL.
package filestore

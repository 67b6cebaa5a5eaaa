// Package sqlite provides an embedded, cgo-free implementation of
// store.JobStore backed by modernc.org/sqlite. It suits single-node
// deployments that want job status to survive a restart without running
// PostgreSQL.
package sqlite

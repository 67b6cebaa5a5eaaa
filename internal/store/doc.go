// Package store defines the persistence contract for jobs. Implementations
// live under internal/platform (memory, postgres, sqlite) and are injected
// into the task runner and the HTTP handlers.
package store

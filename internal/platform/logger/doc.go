// Package logger configures the application's log/slog logger and carries
// request- and job-scoped loggers on a context.Context.
package logger

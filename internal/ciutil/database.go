package ciutil

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/phrazzld/mediajobs/internal/redact"
)

// Connection defaults of the CI PostgreSQL service container.
const (
	StandardCIUser     = "postgres"
	StandardCIPassword = "postgres"
	StandardCIPort     = "5432"
	StandardCIDatabase = "mediajobs_test"
	StandardCIOptions  = "sslmode=disable"
)

// GetTestDatabaseURL returns the database URL for integration tests, or an
// empty string when none is configured. EnvTestDatabaseURL takes precedence
// over EnvDatabaseURL. Under CI, PostgreSQL URLs are rewritten to the
// service container's credentials.
func GetTestDatabaseURL(logger *slog.Logger) string {
	var dbURL, source string
	for _, name := range []string{EnvTestDatabaseURL, EnvDatabaseURL} {
		if val := os.Getenv(name); val != "" {
			dbURL, source = val, name
			break
		}
	}
	if dbURL == "" {
		return ""
	}

	if logger != nil {
		logger.Info("using test database URL", "var", source, "value", redact.String(dbURL))
	}

	if !IsCI() {
		return dbURL
	}

	standardized, err := standardizeDatabaseURL(dbURL)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to standardize database URL", "error", err)
		}
		return dbURL
	}
	return standardized
}

// standardizeDatabaseURL replaces credentials and fills in a missing port,
// database name and options. Non-postgres URLs are returned unchanged.
func standardizeDatabaseURL(dbURL string) (string, error) {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return dbURL, nil
	}

	parsed.User = url.UserPassword(StandardCIUser, StandardCIPassword)

	host := parsed.Hostname()
	if parsed.Port() == "" && (host == "" || host == "localhost" || host == "127.0.0.1") {
		if host == "" {
			host = "localhost"
		}
		parsed.Host = host + ":" + StandardCIPort
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		parsed.Path = "/" + StandardCIDatabase
	}
	if parsed.RawQuery == "" {
		parsed.RawQuery = StandardCIOptions
	}

	return parsed.String(), nil
}

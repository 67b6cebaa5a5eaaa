// Package ciutil detects CI environments and resolves the database URL used
// by the PostgreSQL integration tests.
package ciutil

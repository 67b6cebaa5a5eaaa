// Package postgres provides the PostgreSQL implementation of store.JobStore.
// Connections are opened through the pgx stdlib driver and the schema is
// managed by goose migrations embedded in this package.
package postgres

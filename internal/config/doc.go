// Package config handles configuration loading, parsing, and validation
// from environment variables, an optional .env file and an optional config
// file. Every setting has a default except credentials for external
// collaborators.
package config

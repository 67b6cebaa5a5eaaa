// Package gateway obtains bearer tokens from the identity provider with the
// OAuth2 client credentials grant. Tokens are fetched per use and never
// cached.
package gateway

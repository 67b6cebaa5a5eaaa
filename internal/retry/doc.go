// Package retry provides the bounded exponential backoff policy used for
// flaky external interactions such as the browser fallback.
package retry

// Package fetch downloads ordered lists of remote media items in small
// concurrent batches. Batches run strictly in order with a random pause
// between them, and a failing item is skipped without affecting its batch.
package fetch

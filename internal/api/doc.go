// Package api handles incoming HTTP requests for job submission, status
// polling and the synchronous media endpoints. Handlers validate input,
// hand work to the task runner and translate internal errors to HTTP
// responses; they never wait for a submitted job to finish.
package api

// Package task runs submitted units of work on a bounded pool of background
// workers and records each outcome in a store.JobStore.
//
// Every task executes exactly once. There is no automatic retry, no requeue
// of interrupted tasks, and no way to cancel a task once a worker has picked
// it up: Stop waits for in-flight tasks to finish and fails the tasks that
// were still queued.
package task

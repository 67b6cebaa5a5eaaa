// Package memory provides a process-local implementation of store.JobStore.
// Jobs are lost on restart.
package memory

// Package domain contains the core entities of the media job service: jobs,
// their lifecycle states, and the error taxonomy shared by the pipeline
// stages and the HTTP layer. It has no dependencies on infrastructure.
package domain

// Package events provides a small in-process publish/subscribe mechanism for
// job lifecycle notifications. The task runner emits events; handlers
// registered by the application react to them (logging, metrics, hooks)
// without the runner knowing about them.
package events

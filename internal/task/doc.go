// Package task implements the task service: the single entry point
// for creating, querying, retrying and transitioning asynchronous
// pipeline tasks. Creation persists the task record and publishes the
// corresponding queue entry atomically, so no task exists that was
// never queued.
package task

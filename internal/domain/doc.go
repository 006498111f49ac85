// Package domain defines the core business entities of the document
// pipeline: cases, extracted entities, and asynchronous tasks, along
// with their validation rules and state machines.
package domain

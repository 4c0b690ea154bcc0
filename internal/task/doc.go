// Package task runs CPU-bound units of work on a fixed pool of worker
// goroutines so they do not block request handling.
//
// A Manager owns the workers and an ordered queue of task records. Callers
// submit a typed payload and receive a Future; the manager assigns queued
// tasks to idle workers in FIFO order, routes worker messages back to the
// matching Future, and replaces workers that panic or exit unexpectedly
// without changing the pool size or slot numbering.
//
// Workers share nothing with the manager beyond their inbox channel and the
// manager's event channel. Payloads are JSON-encoded at submission, so the
// caller and the worker never share mutable memory.
package task

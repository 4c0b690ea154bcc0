// Package processor implements the task handlers executed inside pool
// workers. The set of task types is closed: New builds the full dispatch
// table and unknown types produce a structured result instead of an error.
//
// Handlers are synchronous and deterministic given identical inputs. They
// never return key material, and only decrypt returns plaintext.
package processor

// Package api handles incoming HTTP requests for the task executor: request
// validation, submission to the worker pool, and response formatting. It
// translates pool errors into HTTP status codes without leaking payload
// contents or internal details to clients.
package api

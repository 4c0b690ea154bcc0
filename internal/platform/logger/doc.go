// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, context propagation of request-scoped loggers, and an
// in-memory capture handler for tests.
package logger

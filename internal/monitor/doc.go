// Package monitor logs a periodic health report for the worker pool on a
// cron schedule, flagging crashed workers, queue pressure and tasks that
// have been held by a worker for unusually long.
package monitor

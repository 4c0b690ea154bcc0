package task

import "time"

// Stats is a point-in-time snapshot of the pool
type Stats struct {
	Workers         WorkerStats `json:"workers"`
	Queue           QueueStats  `json:"queue"`
	Tasks           TaskStats   `json:"tasks"`
	WorkersReplaced uint64      `json:"workersReplaced"`
}

// WorkerStats counts live workers
type WorkerStats struct {
	Total     int `json:"total"`
	Busy      int `json:"busy"`
	Available int `json:"available"`
}

// QueueStats describes the task queue. Current counts tasks awaiting
// assignment and Processing counts tasks held by workers. Max is the largest
// Current observed since the Manager was created; Limit is the configured
// admission bound.
type QueueStats struct {
	Current    int `json:"current"`
	Processing int `json:"processing"`
	Max        int `json:"max"`
	Limit      int `json:"limit"`
}

// TaskStats holds monotonic task counters. Submitted equals Queued plus
// Rejected, and Completed equals Succeeded + Failed + Crashed + Abandoned.
type TaskStats struct {
	Submitted           uint64  `json:"submitted"`
	Queued              uint64  `json:"queued"`
	Completed           uint64  `json:"completed"`
	Succeeded           uint64  `json:"succeeded"`
	Failed              uint64  `json:"failed"`
	Crashed             uint64  `json:"crashed"`
	Abandoned           uint64  `json:"abandoned"`
	Rejected            uint64  `json:"rejected"`
	AvgProcessingTimeMs float64 `json:"avgProcessingTimeMs"`
}

// counters is the Manager's mutable statistics state
type counters struct {
	queued    uint64
	rejected  uint64
	succeeded uint64
	failed    uint64
	crashed   uint64
	abandoned uint64
	replaced  uint64

	// processed counts completion messages, which are the only outcomes
	// that carry a processing time
	processed           uint64
	totalProcessingTime time.Duration
	avgProcessingTimeMs float64

	maxQueueLength int
}

func (c *counters) completed() uint64 {
	return c.succeeded + c.failed + c.crashed + c.abandoned
}

// observeProcessing folds one processing time into the running mean
func (c *counters) observeProcessing(d time.Duration) {
	c.processed++
	c.totalProcessingTime += d
	ms := float64(d) / float64(time.Millisecond)
	c.avgProcessingTimeMs += (ms - c.avgProcessingTimeMs) / float64(c.processed)
}

func (c *counters) observeQueueLength(n int) {
	if n > c.maxQueueLength {
		c.maxQueueLength = n
	}
}

func (c *counters) taskStats() TaskStats {
	return TaskStats{
		Submitted:           c.queued + c.rejected,
		Queued:              c.queued,
		Completed:           c.completed(),
		Succeeded:           c.succeeded,
		Failed:              c.failed,
		Crashed:             c.crashed,
		Abandoned:           c.abandoned,
		Rejected:            c.rejected,
		AvgProcessingTimeMs: c.avgProcessingTimeMs,
	}
}

package task

// taskQueue is the ordered list of admitted task records. Records awaiting
// assignment and records being processed share one list so that FIFO order
// is preserved across both states. It is not safe for concurrent use; the
// Manager guards it with its mutex.
type taskQueue struct {
	records []*record
	waiting int
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

// push appends a record awaiting assignment
func (q *taskQueue) push(rec *record) {
	q.records = append(q.records, rec)
	if !rec.processing {
		q.waiting++
	}
}

// nextWaiting returns the oldest record not yet assigned to a worker
func (q *taskQueue) nextWaiting() *record {
	if q.waiting == 0 {
		return nil
	}
	for _, rec := range q.records {
		if !rec.processing {
			return rec
		}
	}
	return nil
}

// markProcessing records that rec has been handed to worker slot
func (q *taskQueue) markProcessing(rec *record, slot int) {
	if rec.processing {
		return
	}
	rec.processing = true
	rec.workerID = slot
	q.waiting--
}

// remove deletes the record with the given id and returns it, or nil if
// no such record exists
func (q *taskQueue) remove(id string) *record {
	for i, rec := range q.records {
		if rec.id != id {
			continue
		}
		q.records = append(q.records[:i], q.records[i+1:]...)
		if !rec.processing {
			q.waiting--
		}
		return rec
	}
	return nil
}

// drain removes and returns every record
func (q *taskQueue) drain() []*record {
	records := q.records
	q.records = nil
	q.waiting = 0
	return records
}

// len returns the number of records, waiting or processing
func (q *taskQueue) len() int {
	return len(q.records)
}

// waitingLen returns the number of records awaiting assignment
func (q *taskQueue) waitingLen() int {
	return q.waiting
}

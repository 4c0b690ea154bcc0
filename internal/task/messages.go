package task

import (
	"encoding/json"
	"time"
)

// WorkerStatus is reported by a worker through status messages
type WorkerStatus string

// Possible worker status values
const (
	WorkerStatusReady      WorkerStatus = "ready"
	WorkerStatusProcessing WorkerStatus = "processing"
)

// Exit codes reported by a worker goroutine when it ends
const (
	exitClean    = 0
	exitFault    = 1
	exitAbnormal = 2
)

// dispatch is the only message a worker receives. Closing the inbox is the
// terminate instruction.
type dispatch struct {
	ID      string
	Type    string
	Payload json.RawMessage
}

type eventKind int

const (
	eventStatus eventKind = iota
	eventComplete
	eventFault
	eventExit
)

func (k eventKind) String() string {
	switch k {
	case eventStatus:
		return "status"
	case eventComplete:
		return "complete"
	case eventFault:
		return "fault"
	case eventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// event is a message from a worker to the manager's router. Slot and
// generation identify the sender so that messages from a replaced worker
// can be discarded.
type event struct {
	kind       eventKind
	slot       int
	generation uint64

	// status
	status WorkerStatus

	// status and complete
	taskID string

	// complete
	data           json.RawMessage
	err            error
	processingTime time.Duration

	// fault
	cause error

	// exit
	code int
}

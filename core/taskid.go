package core

import (
	"strconv"
	"sync/atomic"
)

var taskIDCounter atomic.Uint64

// TaskID uniquely identifies a task for the lifetime of the process.
// Grain siblings produced by the same NewMultiTask call each get their own ID;
// they share an arriver/reducer, not an identity.
type TaskID uint64

// GenerateTaskID returns a fresh, process-unique task identifier.
func GenerateTaskID() TaskID {
	return TaskID(taskIDCounter.Add(1))
}

func (id TaskID) String() string {
	return "task-" + strconv.FormatUint(uint64(id), 10)
}

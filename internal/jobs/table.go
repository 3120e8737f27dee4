package jobs

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the number of concurrent jobs a table holds unless
// configured otherwise.
const DefaultCapacity = 100

var (
	// ErrFull is returned by Insert when the table is at capacity.
	ErrFull = errors.New("job queue full")
	// ErrDuplicatePID is returned by Insert when the pid is already tracked.
	ErrDuplicatePID = errors.New("pid already tracked")
)

// Table is the ordered registry of live jobs. Ids are handed out from a
// counter that only moves forward, so an id is never reused within a session.
//
// A Table is not safe for concurrent use. The shell mutates it from a single
// goroutine.
type Table struct {
	jobs     []Job
	nextID   int
	capacity int
}

// NewTable returns an empty table holding at most capacity jobs.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		jobs:     make([]Job, 0, capacity),
		nextID:   1,
		capacity: capacity,
	}
}

// Insert appends a job for pid and returns the id it was given.
func (t *Table) Insert(pid int, command string, state State) (int, error) {
	if len(t.jobs) >= t.capacity {
		return 0, ErrFull
	}
	if _, ok := t.indexByPID(pid); ok {
		return 0, fmt.Errorf("pid %d: %w", pid, ErrDuplicatePID)
	}

	id := t.nextID
	t.nextID++
	t.jobs = append(t.jobs, Job{
		ID:      id,
		PID:     pid,
		State:   state,
		Command: truncate(command),
	})
	return id, nil
}

// RemoveByPID deletes the job for pid, keeping the order of the rest.
func (t *Table) RemoveByPID(pid int) (Job, bool) {
	i, ok := t.indexByPID(pid)
	if !ok {
		return Job{}, false
	}
	job := t.jobs[i]
	t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
	return job, true
}

func (t *Table) FindByPID(pid int) (Job, bool) {
	i, ok := t.indexByPID(pid)
	if !ok {
		return Job{}, false
	}
	return t.jobs[i], true
}

func (t *Table) FindByID(id int) (Job, bool) {
	for _, job := range t.jobs {
		if job.ID == id {
			return job, true
		}
	}
	return Job{}, false
}

// SetState records a new state for pid. It reports false if pid is unknown.
func (t *Table) SetState(pid int, state State) bool {
	i, ok := t.indexByPID(pid)
	if !ok {
		return false
	}
	t.jobs[i].State = state
	return true
}

// Jobs returns a copy of the table in insertion order.
func (t *Table) Jobs() []Job {
	return append([]Job(nil), t.jobs...)
}

func (t *Table) Len() int { return len(t.jobs) }

func (t *Table) Cap() int { return t.capacity }

// NextID is the id the next successful Insert will assign.
func (t *Table) NextID() int { return t.nextID }

func (t *Table) indexByPID(pid int) (int, bool) {
	for i, job := range t.jobs {
		if job.PID == pid {
			return i, true
		}
	}
	return 0, false
}

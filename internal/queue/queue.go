// Package queue provides the ordered list of upload ids waiting to be scanned.
package queue

import (
	"slices"
	"time"
)

// JobQueue is an ordered list of upload ids with a queue-wide pause flag.
//
// A JobQueue is not safe for concurrent use; its owner serialises access.
// Positions are advisory and shift whenever an earlier entry is removed or
// another id is pushed to the front.
type JobQueue struct {
	ids    []string
	paused bool
	delay  time.Duration
}

// New returns an empty, unpaused queue.
func New() *JobQueue {
	return &JobQueue{}
}

// AddJob appends id and returns its 0-based position.
func (q *JobQueue) AddJob(id string) int {
	q.ids = append(q.ids, id)
	return len(q.ids) - 1
}

// Dequeue removes the front entry, if any.
func (q *JobQueue) Dequeue() {
	if len(q.ids) == 0 {
		return
	}
	q.ids[0] = ""
	q.ids = q.ids[1:]
}

// Front returns the id at the front without removing it.
func (q *JobQueue) Front() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	return q.ids[0], true
}

// FindJob returns the position of the first occurrence of id, or -1.
func (q *JobQueue) FindJob(id string) int {
	return slices.Index(q.ids, id)
}

// RemoveJob removes the first occurrence of id. It is a no-op if id is absent.
func (q *JobQueue) RemoveJob(id string) {
	if i := q.FindJob(id); i >= 0 {
		q.ids = slices.Delete(q.ids, i, i+1)
	}
}

// PushFront inserts id ahead of every other entry.
func (q *JobQueue) PushFront(id string) {
	q.ids = slices.Insert(q.ids, 0, id)
}

// Len returns the number of entries.
func (q *JobQueue) Len() int {
	return len(q.ids)
}

// Pause marks the queue paused; the worker should sleep for d before resuming.
func (q *JobQueue) Pause(d time.Duration) {
	q.paused = true
	q.delay = d
}

// Resume clears the pause state.
func (q *JobQueue) Resume() {
	q.paused = false
	q.delay = 0
}

// Paused reports whether the queue is paused.
func (q *JobQueue) Paused() bool {
	return q.paused
}

// PauseDelay returns the wake delay recorded by the last Pause, or zero.
func (q *JobQueue) PauseDelay() time.Duration {
	return q.delay
}

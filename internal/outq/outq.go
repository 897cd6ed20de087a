// Package outq is the host-facing side of the event loop's output: every
// outbound event (OutProposal, OutAccept, OutCommit, and the diagnostic
// OutOutOfSync/OutOutOfDate/OutDuplicate) is appended here by the core and
// removed by the host's drain loop, matching the design note that "the core
// never directly invokes I/O" (spec §9). It is backed by a bounded ring
// buffer so a host that falls behind loses the oldest events first rather
// than the core blocking on a slow reader.
package outq

import "github.com/zfjagann/golang-ring"

// Queue is a single-producer bounded FIFO of arbitrary host-visible events.
type Queue struct {
	r ring.Ring
}

// New returns a Queue that retains at most capacity events.
func New(capacity int) *Queue {
	q := &Queue{}
	q.r.SetCapacity(capacity)
	return q
}

// Push appends an event, evicting the oldest one if the queue is full.
func (q *Queue) Push(v interface{}) { q.r.Enqueue(v) }

// Pop removes and returns the oldest event, or nil if the queue is empty.
func (q *Queue) Pop() interface{} { return q.r.Dequeue() }

// Drain removes and returns every currently queued event, oldest first.
// golang-ring's Values() is a non-destructive peek, not a dequeue, so
// draining has to walk Dequeue() itself — same call Pop() makes — until
// the ring reports empty (a nil value).
func (q *Queue) Drain() []interface{} {
	var out []interface{}
	for {
		v := q.r.Dequeue()
		if v == nil {
			break
		}
		out = append(out, v)
	}
	return out
}

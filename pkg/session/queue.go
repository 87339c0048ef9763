package session

import "time"

// Outbound is a server-to-client frame waiting for acknowledgment.
//
// The payload is stored without its transport envelope; the sender
// materializes the full frame (token and sequence ID) when it first puts
// the frame on the wire.
type Outbound struct {
	// Seq is the sequence ID assigned at enqueue time.
	Seq uint32

	// Payload is the frame body starting at the command head,
	// e.g. "GAME_CREATED;ABCDE;35999".
	Payload string

	// Built caches the materialized wire frame after the first send.
	Built []byte

	// SentAt is the time of the last transmission. Zero until first sent.
	SentAt time.Time
}

// Queue is the per-session outbound FIFO. Only the head frame is ever in
// flight; the rest wait for the head to be acknowledged.
//
// Queue is not safe for concurrent use; callers hold the owning session's
// lock.
type Queue struct {
	items []*Outbound
}

// Push appends a frame to the tail.
func (q *Queue) Push(o *Outbound) {
	q.items = append(q.items, o)
}

// Head returns the frame currently eligible for transmission, or nil when
// the queue is empty.
func (q *Queue) Head() *Outbound {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head, or nil when the queue is empty.
func (q *Queue) Pop() *Outbound {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

// Drain discards all queued frames.
func (q *Queue) Drain() {
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.items)
}

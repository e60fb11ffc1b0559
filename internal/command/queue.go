package command

import "sync"

// Queue is the ordered intake shared by every input source. Push may be
// called from any goroutine; Drain is called by the tick goroutine.
type Queue struct {
	mu      sync.Mutex
	pending []Command
	nextSeq uint64
}

func NewQueue() *Queue {
	return &Queue{pending: make([]Command, 0, 64)}
}

// Push stamps cmd with the next sequence number and enqueues it.
func (q *Queue) Push(cmd Command) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	cmd.Seq = q.nextSeq
	q.pending = append(q.pending, cmd)
	return cmd.Seq
}

// Drain removes up to max commands in arrival order. max <= 0 drains all.
// The remainder stays queued for the next step.
func (q *Queue) Drain(max int) []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if n == 0 {
		return nil
	}
	if max > 0 && n > max {
		n = max
	}
	out := make([]Command, n)
	copy(out, q.pending[:n])
	rest := copy(q.pending, q.pending[n:])
	clear(q.pending[rest:])
	q.pending = q.pending[:rest]
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

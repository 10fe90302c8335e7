package pipeline

import (
	"context"
	"sync"
	"time"
)

// DefaultQueueCapacity bounds the command queue when no explicit capacity is
// configured.
const DefaultQueueCapacity = 64

// CommandQueue is a bounded FIFO between the listening loop and command
// consumers. Push never blocks: when the queue is full the OLDEST command is
// dropped to make room, so a stalled consumer loses stale commands rather
// than fresh ones. Surviving commands are delivered in capture order.
//
// Safe for one producer and any number of consumers.
type CommandQueue struct {
	mu      sync.Mutex
	items   []VoiceCommand
	cap     int
	dropped uint64

	// signal wakes one blocked Pop after a Push. Buffered so a Push with no
	// waiting consumer does not block.
	signal chan struct{}
}

// NewCommandQueue returns a queue bounded at capacity. A capacity <= 0 uses
// DefaultQueueCapacity.
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &CommandQueue{
		cap:    capacity,
		signal: make(chan struct{}, 1),
	}
}

// Push enqueues cmd, dropping the oldest queued command when full. It
// reports whether a command was dropped.
func (q *CommandQueue) Push(cmd VoiceCommand) (dropped bool) {
	q.mu.Lock()
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return dropped
}

// Pop returns the oldest queued command, blocking up to timeout for one to
// arrive. ok is false when the timeout expires or ctx is cancelled with the
// queue empty.
func (q *CommandQueue) Pop(ctx context.Context, timeout time.Duration) (cmd VoiceCommand, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd = q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			// Other commands may still be queued; keep a waiter runnable.
			if remaining > 0 {
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			return cmd, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-timer.C:
			return VoiceCommand{}, false
		case <-ctx.Done():
			return VoiceCommand{}, false
		}
	}
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of commands discarded by the oldest-drop
// policy.
func (q *CommandQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

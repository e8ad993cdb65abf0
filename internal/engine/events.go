package engine

import (
	"sync"

	"github.com/seantiz/agentflow/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// StepEvent reports one step transition of an execution.
type StepEvent struct {
	ExecutionID string              `json:"execution_id"`
	Framework   model.FrameworkType `json:"framework"`
	Step        model.ExecutionStep `json:"step"`
}

// EventBroker manages per-execution step event streaming to subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after an execution finishes) receive a closed channel instead of
// blocking forever. Markers are dropped by Forget when the execution record
// is evicted.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan StepEvent
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives step events for the given
// execution and an unsubscribe function. If the execution has already
// finished (Close was called), the returned channel is immediately closed.
func (b *EventBroker) Subscribe(executionID string) (<-chan StepEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan StepEvent)}
		b.topics[executionID] = t
	}

	ch := make(chan StepEvent, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of its execution.
// Events are dropped for subscribers whose buffers are full.
func (b *EventBroker) Publish(ev StepEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.ExecutionID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Drop event for slow subscribers to avoid blocking execution.
		}
	}
}

// Close signals that no more events will be published for the given
// execution. All subscriber channels are closed and future Subscribe calls
// return a closed channel.
func (b *EventBroker) Close(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		b.topics[executionID] = &eventTopic{subs: make(map[int]chan StepEvent), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Open resets a closed topic so a re-run under the same execution id streams
// again.
func (b *EventBroker) Open(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[executionID]; ok && t.closed {
		delete(b.topics, executionID)
	}
}

// Forget drops the topic for an execution, closing any remaining subscribers.
func (b *EventBroker) Forget(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		return
	}
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	delete(b.topics, executionID)
}

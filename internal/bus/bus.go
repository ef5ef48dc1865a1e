package bus

import (
	"sync"

	"github.com/sirupsen/logrus"

	"chatroom-service/internal/observability"
)

// Handler consumes one published event. Handlers run on the dispatch
// goroutine and therefore serialize: blocking work inside a handler delays
// everything behind it, which is exactly the ordering guarantee consumers
// rely on (e.g. a room purge published after a room delete runs after it).
type Handler func(payload any)

// Bus is the in-process event dispatcher connecting connection-driven events
// to persistence-side consumers. A single goroutine drains a buffered queue,
// so dispatch order equals publish order across all event names.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	queue chan event
	done  chan struct{}
	once  sync.Once
}

type event struct {
	name    string
	payload any
}

// New creates a stopped Bus with the given queue capacity.
func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan event, queueSize),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a handler for an event name. Consumers subscribe once
// at startup, before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish enqueues an event. It blocks only when the queue is full; there is
// no further backpressure or flow control. Events published after Stop are
// dropped, never enqueued.
func (b *Bus) Publish(name string, payload any) {
	select {
	case <-b.done:
		logrus.WithField("event", name).Warn("bus stopped, event dropped")
		return
	default:
	}
	select {
	case <-b.done:
		logrus.WithField("event", name).Warn("bus stopped, event dropped")
	case b.queue <- event{name: name, payload: payload}:
	}
}

// Start launches the dispatch goroutine.
func (b *Bus) Start() {
	go b.run()
}

// Stop drains nothing and stops dispatching. Pending events in the queue are
// discarded; callers stop producers first.
func (b *Bus) Stop() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bus) run() {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.queue:
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dispatch(ev event) {
	b.mu.RLock()
	handlers := b.handlers[ev.name]
	b.mu.RUnlock()

	observability.IncBusEvent(ev.name)
	if len(handlers) == 0 {
		logrus.WithField("event", ev.name).Debug("no subscribers for event")
		return
	}
	for _, h := range handlers {
		h(ev.payload)
	}
}

package session

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"goveiss/internal/veiss"
)

const (
	EVENT_BUFFER      = 1024 // events accepted before Submit blocks
	SUBSCRIBER_BUFFER = 64   // outputs a subscriber may lag behind before they are dropped for it
	PENDING_OUTPUTS   = 256  // outputs waiting for earlier corrections before the loop blocks
)

var ErrClosed = errors.New("engine is closed")

type Options struct {
	Tuning veiss.Tuning
	Logger *slog.Logger
	Clock  func() time.Time
}

// pending is a queued output. Corrections fill it asynchronously, the
// emitter publishes queued outputs strictly in order.
type pending struct {
	result chan Output
}

// Engine runs the session state machine of one device. Events are
// processed by a single goroutine, completed sets are corrected in their
// own goroutines and published in set order.
type Engine struct {
	events chan Event
	queue  chan *pending
	quit   chan struct{}
	done   chan struct{}

	subscriberMu sync.Mutex
	subscribers  map[string]chan Output

	state  *SessionState
	tuning veiss.Tuning
	logger *slog.Logger
	clock  func() time.Time

	corrections sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	e := &Engine{
		events:      make(chan Event, EVENT_BUFFER),
		queue:       make(chan *pending, PENDING_OUTPUTS),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		subscribers: make(map[string]chan Output),
		state:       NewSessionState(opts.Logger),
		tuning:      opts.Tuning,
		logger:      opts.Logger,
		clock:       opts.Clock,
	}
	go e.loop()
	go e.emit()
	return e
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a listener for every output published after the call.
func (this *Engine) Subscribe() (string, <-chan Output) {
	id := randomID()
	ch := make(chan Output, SUBSCRIBER_BUFFER)
	this.subscriberMu.Lock()
	defer this.subscriberMu.Unlock()
	this.subscribers[id] = ch
	return id, ch
}

func (this *Engine) Unsubscribe(id string) {
	this.subscriberMu.Lock()
	defer this.subscriberMu.Unlock()
	if ch, ok := this.subscribers[id]; ok {
		close(ch)
		delete(this.subscribers, id)
	}
}

// Submit hands an event to the engine. It only blocks while the event
// buffer is full. An event accepted before Close is always processed.
func (this *Engine) Submit(ctx context.Context, ev Event) error {
	this.closeMu.RLock()
	defer this.closeMu.RUnlock()
	if this.closed {
		return ErrClosed
	}
	select {
	case this.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close processes the events already submitted, flushes the exercise in
// progress, waits for all corrections and closes every subscriber channel.
func (this *Engine) Close() error {
	this.closeMu.Lock()
	if !this.closed {
		this.closed = true
		close(this.quit)
	}
	this.closeMu.Unlock()
	<-this.done
	return nil
}

func (this *Engine) loop() {
	defer close(this.queue)
	for {
		select {
		case ev := <-this.events:
			this.apply(ev)
		case <-this.quit:
			for {
				select {
				case ev := <-this.events:
					this.apply(ev)
				default:
					this.enqueue(this.state.finish())
					return
				}
			}
		}
	}
}

func (this *Engine) apply(ev Event) {
	now := ev.receivedAt()
	if now.IsZero() {
		now = this.clock()
	}
	this.enqueue(this.state.handle(ev, now))
}

func (this *Engine) enqueue(steps []step) {
	for _, s := range steps {
		p := &pending{result: make(chan Output, 1)}
		if s.correction == nil {
			p.result <- s.output
		} else {
			this.corrections.Add(1)
			go func(c *correction) {
				defer this.corrections.Done()
				p.result <- c.run(this.tuning, this.logger.With("exercise", c.ExerciseId, "set", c.SetNumber))
			}(s.correction)
		}
		this.queue <- p
	}
}

func (this *Engine) emit() {
	defer close(this.done)
	for p := range this.queue {
		this.publish(<-p.result)
	}
	this.corrections.Wait()

	this.subscriberMu.Lock()
	defer this.subscriberMu.Unlock()
	for id, ch := range this.subscribers {
		close(ch)
		delete(this.subscribers, id)
	}
}

func (this *Engine) publish(out Output) {
	this.subscriberMu.Lock()
	defer this.subscriberMu.Unlock()
	for id, ch := range this.subscribers {
		select {
		case ch <- out:
		default:
			this.logger.Warn("subscriber is not keeping up, dropping output", "subscriber", id)
		}
	}
}

// State reports the state machine state. It is only meaningful once the
// engine is idle, e.g. in tests after Close.
func (this *Engine) State() State {
	return this.state.State
}

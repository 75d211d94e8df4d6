// Package forwarder delivers decoded events to the downstream HTTP endpoint
// asynchronously, with bounded queueing and retry, so downstream health never
// leaks into panel acknowledgment latency. It also hosts the heartbeat filter
// that keeps periodic test signals out of the delivery stream.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/oshokin/sia-bridge/internal/domain/event"
	"github.com/oshokin/sia-bridge/internal/logger"
	"github.com/oshokin/sia-bridge/internal/version"
)

// errQueueOverflow is recorded against tasks evicted before delivery.
var errQueueOverflow = errors.New("dropped before delivery: queue overflow")

// OutcomeRecorder receives the terminal delivery outcome of each task.
// The replay store implements it.
type OutcomeRecorder interface {
	MarkForwarded(id uint64, forwardErr error)
}

// Options configures the forwarder.
type Options struct {
	// URL is the downstream HTTP target.
	URL string
	// AuthHeader is an optional Authorization header value.
	AuthHeader string
	// Cookie is an optional Cookie header value, passed through verbatim.
	Cookie string
	// ExtraHeaders are additional headers set on every delivery. The
	// dedicated Authorization and Cookie options win on collision.
	ExtraHeaders map[string]string
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
	// MaxAttempts is the retry budget per task.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles per retry.
	BaseDelay time.Duration
	// QueueSize bounds the pending queue; oldest tasks are dropped when
	// producers outpace delivery.
	QueueSize int
	// Recorder receives terminal outcomes. Optional.
	Recorder OutcomeRecorder
	// Client overrides the HTTP client, for tests. Optional.
	Client *http.Client
}

// task wraps an event with its delivery metadata. Only the delivery loop
// mutates a task after enqueue.
type task struct {
	event     *event.AlarmEvent
	recordID  uint64
	attempts  int
	lastError error
}

// Forwarder delivers events to the downstream target asynchronously.
// Enqueue never blocks and never fails from the caller's perspective, so a
// slow or failing downstream can never stall a panel acknowledgment.
type Forwarder struct {
	opts   Options
	client *http.Client

	mu      sync.Mutex
	pending []*task
	dropped uint64

	notify chan struct{}
	done   chan struct{}
}

// New creates a forwarder. Call Start to launch the delivery loop.
func New(opts Options) *Forwarder {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Forwarder{
		opts:    opts,
		client:  client,
		pending: make([]*task, 0, opts.QueueSize),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery loop. It returns immediately; the loop stops
// when the context is canceled, and Wait blocks until it has drained.
func (f *Forwarder) Start(ctx context.Context) {
	go f.run(logger.WithName(ctx, "forwarder"))
}

// Wait blocks until the delivery loop has stopped.
func (f *Forwarder) Wait() {
	<-f.done
}

// Enqueue adds an event to the delivery queue. It is non-blocking: when
// the queue is full the oldest pending task is evicted and its record is
// marked with an overflow error.
func (f *Forwarder) Enqueue(evt *event.AlarmEvent, recordID uint64) {
	f.mu.Lock()

	var evicted *task

	if len(f.pending) >= f.opts.QueueSize {
		evicted = f.pending[0]
		copy(f.pending, f.pending[1:])
		f.pending = f.pending[:len(f.pending)-1]
		f.dropped++
	}

	f.pending = append(f.pending, &task{event: evt, recordID: recordID})
	f.mu.Unlock()

	if evicted != nil {
		f.recordOutcome(evicted.recordID, errQueueOverflow)
	}

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// QueueDepth returns the number of tasks waiting for delivery.
func (f *Forwarder) QueueDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.pending)
}

// Dropped returns how many tasks were evicted under overload.
func (f *Forwarder) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.dropped
}

// run is the delivery loop: one task at a time, retries inline with
// exponential backoff, terminal outcomes recorded and never propagated
// back to the panel-facing side.
func (f *Forwarder) run(ctx context.Context) {
	defer close(f.done)

	logger.Info(ctx, "Delivery loop started")

	for {
		next := f.pop()
		if next == nil {
			select {
			case <-ctx.Done():
				logger.Info(ctx, "Delivery loop stopped")

				return
			case <-f.notify:
				continue
			}
		}

		f.deliver(ctx, next)

		// Cancellation between tasks, so one task's backoff cannot pin
		// the loop after shutdown.
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Delivery loop stopped")

			return
		default:
		}
	}
}

// pop removes the oldest pending task.
func (f *Forwarder) pop() *task {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return nil
	}

	next := f.pending[0]
	copy(f.pending, f.pending[1:])
	f.pending = f.pending[:len(f.pending)-1]

	return next
}

// deliver runs the retry loop for one task.
func (f *Forwarder) deliver(ctx context.Context, t *task) {
	delay := f.opts.BaseDelay

	for {
		t.attempts++

		err := f.attempt(ctx, t)
		if err == nil {
			logger.InfoKV(ctx, "Event forwarded",
				"account", t.event.AccountID, "code", t.event.Code, "attempts", t.attempts)
			f.recordOutcome(t.recordID, nil)

			return
		}

		t.lastError = err
		logger.WarnKV(ctx, "Delivery attempt failed",
			"account", t.event.AccountID, "code", t.event.Code,
			"attempt", t.attempts, "error", err)

		if t.attempts >= f.opts.MaxAttempts {
			logger.ErrorKV(ctx, "Delivery exhausted, dropping event",
				"account", t.event.AccountID, "code", t.event.Code, "attempts", t.attempts)
			f.recordOutcome(t.recordID, t.lastError)

			return
		}

		select {
		case <-ctx.Done():
			f.recordOutcome(t.recordID, t.lastError)

			return
		case <-time.After(delay):
		}

		delay *= 2
	}
}

// attempt performs one HTTP delivery with a bounded timeout.
func (f *Forwarder) attempt(ctx context.Context, t *task) error {
	body, err := json.Marshal(mapEvent(t.event))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	attemptCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc

		attemptCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, f.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	for name, value := range f.opts.ExtraHeaders {
		req.Header.Set(name, value)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if f.opts.Cookie != "" {
		req.Header.Set("Cookie", f.opts.Cookie)
	}

	if f.opts.AuthHeader != "" {
		req.Header.Set("Authorization", f.opts.AuthHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}

	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("downstream returned %s", resp.Status)
	}

	return nil
}

// recordOutcome attaches the terminal outcome to the replay record.
func (f *Forwarder) recordOutcome(recordID uint64, err error) {
	if f.opts.Recorder == nil {
		return
	}

	f.opts.Recorder.MarkForwarded(recordID, err)
}

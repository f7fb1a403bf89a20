package results

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/cxbot/core/logger"
	"log/slog"
)

// DispatcherOptions controls the behaviour of the outcome dispatcher.
type DispatcherOptions struct {
	QueueSize int
	Workers   int
	// MaxDuration bounds the time spent recording a single outcome,
	// retries included.
	MaxDuration time.Duration
}

// Dispatcher records outcomes asynchronously so the reply path never waits
// on the results store. Failures are counted and logged, never surfaced:
// when the queue is saturated or closed the outcome is dropped.
type Dispatcher struct {
	opts DispatcherOptions
	sink Sink
	jobs chan Outcome
	once sync.Once
	wg   sync.WaitGroup

	// mu orders Dispatch against Close: a send on jobs only happens
	// while closed is false, so the channel is never closed mid-send.
	mu     sync.Mutex
	closed bool

	recorded atomic.Uint64
	errs     atomic.Uint64
	dropped  atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		sink: sink,
		jobs: make(chan Outcome, opts.QueueSize),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	return d
}

// Dispatch enqueues the outcome without blocking.
func (d *Dispatcher) Dispatch(o Outcome) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.dropped.Add(1)
		return
	}

	select {
	case d.jobs <- o:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.dropped.Add(1)
		logger.Warn(context.Background(), "service.results", "record.drop",
			slog.Int64("user_id", o.UserID),
			slog.Int("queue_depth", len(d.jobs)),
		)
	}
}

// RecordedCount returns the number of successfully recorded outcomes.
func (d *Dispatcher) RecordedCount() uint64 { return d.recorded.Load() }

// ErrorCount returns the number of outcomes that failed to record.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() + d.dropped.Load() }

// Close stops intake and waits for queued outcomes to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for o := range d.jobs {
		d.record(o)
	}
}

func (d *Dispatcher) record(o Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	if err := d.sink.Record(ctx, o); err != nil {
		d.errs.Add(1)
		logger.Warn(ctx, "service.results", "record.fail",
			slog.Int64("user_id", o.UserID),
			slog.String("role", o.Role),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Duration("duration", logger.Took(start)),
		)
		return
	}
	d.recorded.Add(1)
	logger.Debug(ctx, "service.results", "record.ok",
		slog.Int64("user_id", o.UserID),
		slog.String("role", o.Role),
		slog.Int("correct", o.Correct),
		slog.Int("errors", o.Errors),
		slog.Duration("duration", logger.Took(start)),
	)
}

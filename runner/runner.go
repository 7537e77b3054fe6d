// Package runner drives a pipeline over a word-list with a pool of concurrent
// workers sharing a data pool, a proxy pool, counters and output sinks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sflowg/blockrunner/runtime"
	"github.com/sflowg/blockrunner/runtime/engine/blocks"
	"github.com/sflowg/blockrunner/runtime/engine/script"
	"github.com/sflowg/blockrunner/runtime/engine/yaml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sflowg/blockrunner/runner"

// ErrAlreadyStarted is returned by a second call to Start. A Runner runs once.
var ErrAlreadyStarted = errors.New("runner already started")

// ErrBlockPanic wraps a panic raised while walking one record's blocks.
var ErrBlockPanic = errors.New("block panicked")

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.l = l }
}

// WithExecutor replaces the default block tree executor.
func WithExecutor(e *runtime.Executor) Option {
	return func(r *Runner) { r.executor = e }
}

func WithOutputWriter(w *OutputWriter) Option {
	return func(r *Runner) { r.output = w }
}

func WithHitSink(s HitSink) Option {
	return func(r *Runner) { r.sink = s }
}

type Runner struct {
	l         *slog.Logger
	pipeline  *runtime.Pipeline
	transport runtime.Transport
	data      *DataPool
	proxies   *ProxyPool
	executor  *runtime.Executor
	output    *OutputWriter
	sink      HitSink

	hits     chan HitResult
	stopped  chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	running  atomic.Bool
	paused   atomic.Bool

	stats stats
	feed  *feed

	tracer  trace.Tracer
	records metric.Int64Counter
}

// New prepares a run and narrows data to the pipeline's skip and take window.
// A nil proxy pool behaves as an empty one.
func New(p *runtime.Pipeline, transport runtime.Transport, data *DataPool, proxies *ProxyPool, opts ...Option) *Runner {
	data.SkipTake(p.Runner.Skip, p.Runner.Take)
	if proxies == nil {
		proxies = NewProxyPool(nil, p.Proxy.BanDuration)
	}

	r := &Runner{
		l:         slog.Default(),
		pipeline:  p,
		transport: transport,
		data:      data,
		proxies:   proxies,
		hits:      make(chan HitResult, max(p.Runner.HitBuffer, 1)),
		stopped:   make(chan struct{}),
		feed:      newFeed(FeedCapacity),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.executor == nil {
		conditions := yaml.NewConditionEvaluator()
		r.executor = runtime.NewExecutor(r.l, conditions, blocks.NewExecutor(r.l, conditions, script.NewEvaluator()))
	}
	if r.output == nil {
		r.output = NewOutputWriter(p.Name, p.Output)
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter("runner.records",
		metric.WithDescription("Records processed, by outcome"))
	if err != nil {
		r.l.Warn("Failed to create records counter", "error", err)
		counter, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("runner.records")
	}
	r.records = counter

	return r
}

// Start runs the workers and blocks until all of them exit: the data is exhausted,
// Stop was called, or ctx ended. The hits channel is closed when Start returns.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(r.hits)

	r.running.Store(true)
	r.paused.Store(false)
	r.stats.reset(r.data.Total())

	settings := r.pipeline.Runner
	delay := time.Duration(0)
	if settings.StartThreadsGradually {
		delay = runtime.Millis(gradualDelayMS(settings.Threads, settings.GradualDelayMS))
	}

	r.l.InfoContext(ctx, fmt.Sprintf("Starting %d workers", settings.Threads),
		"pipeline", r.pipeline.Name,
		"records", r.data.Total(),
		"proxies", r.proxies.Total(),
		"gradual_delay", delay)

	var wg sync.WaitGroup
	for i := 0; i < settings.Threads; i++ {
		if i > 0 && delay > 0 && !sleep(ctx, delay) {
			break
		}
		if !r.running.Load() {
			break
		}

		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
	r.running.Store(false)

	var errs []error
	if err := r.output.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close output: %w", err))
	}
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close hit sink: %w", err))
		}
	}

	st := r.Stats()
	r.l.InfoContext(ctx, "Run finished",
		"pipeline", r.pipeline.Name,
		"processed", st.Processed,
		"hits", st.Hits,
		"fails", st.Fails,
		"bans", st.Bans,
		"retries", st.Retries,
		"errors", st.Errors,
		"elapsed", st.Elapsed)
	return errors.Join(errs...)
}

// gradualDelayMS caps the total ramp-up at about three seconds.
func gradualDelayMS(threads, delayMS int) int {
	if threads <= 1 {
		return delayMS
	}
	return min(delayMS, max(3000/threads, 1))
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
}

func (r *Runner) Resume() {
	r.paused.Store(false)
}

// Stop asks workers to exit after their current record.
func (r *Runner) Stop() {
	r.running.Store(false)
	r.stopOnce.Do(func() { close(r.stopped) })
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// Hits streams successful results. Workers block on a full channel until the
// consumer catches up, so it must be drained while Start runs.
func (r *Runner) Hits() <-chan HitResult {
	return r.hits
}

func (r *Runner) Stats() RunnerStats {
	return r.stats.snapshot(r.data.Consumed(), time.Now())
}

// Feed returns the most recent results, oldest first.
func (r *Runner) Feed() []ResultEntry {
	return r.feed.recent()
}

// Proxies exposes the pool for status reporting.
func (r *Runner) Proxies() *ProxyPool {
	return r.proxies
}

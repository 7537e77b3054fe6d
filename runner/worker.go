package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sflowg/blockrunner/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	pausePoll           = 100 * time.Millisecond
	sessionCloseTimeout = 5 * time.Second
)

// worker is the per-goroutine state of one runner worker.
type worker struct {
	r       *Runner
	id      int
	session string
	globals map[string]string
	proxy   string // sticky mode only
}

func (r *Runner) runWorker(ctx context.Context, id int) {
	r.stats.activeWorkers.Add(1)
	defer r.stats.activeWorkers.Add(-1)

	w := &worker{r: r, id: id, session: uuid.NewString()}
	w.openSession(ctx)
	defer w.closeSession(ctx)

	w.globals = w.runStartup(ctx)

	for r.running.Load() && ctx.Err() == nil {
		if !w.waitWhilePaused(ctx) {
			break
		}

		line, ok := r.data.NextLine()
		if !ok {
			break
		}
		w.process(ctx, line, w.nextProxy())
	}
}

func (w *worker) openSession(ctx context.Context) {
	b := w.r.pipeline.Browser
	req := runtime.NewRequest(runtime.ActionNewSession, w.session)
	req.Browser = b.Browser
	req.JA3 = b.JA3
	req.HTTP2FP = b.HTTP2Fingerprint

	if _, err := runtime.Roundtrip(ctx, w.r.transport, req); err != nil {
		w.r.l.WarnContext(ctx, "Failed to open transport session",
			"worker", w.id,
			"session", w.session,
			"error", err)
	}
}

func (w *worker) closeSession(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()

	req := runtime.NewRequest(runtime.ActionCloseSession, w.session)
	if _, err := runtime.Roundtrip(ctx, w.r.transport, req); err != nil {
		w.r.l.DebugContext(ctx, "Failed to close transport session",
			"worker", w.id,
			"session", w.session,
			"error", err)
	}
}

// runStartup runs the startup blocks once and returns the user variables they
// produced, to be seeded as globals into every record.
func (w *worker) runStartup(ctx context.Context) map[string]string {
	startup := w.r.pipeline.StartupBlocks
	if len(startup) == 0 {
		return nil
	}

	execution := w.newExecution(ctx, "")
	if err := w.execute(execution, startup); err != nil {
		w.r.l.WarnContext(ctx, "Startup blocks failed",
			"worker", w.id,
			"error", err)
	}

	globals := make(map[string]string)
	for _, name := range execution.Variables.UserNames() {
		globals[name], _ = execution.Variables.Get(name)
	}
	return globals
}

// waitWhilePaused polls the pause flag and reports whether the worker should go on.
func (w *worker) waitWhilePaused(ctx context.Context) bool {
	for w.r.paused.Load() && w.r.running.Load() {
		if !sleep(ctx, pausePoll) {
			return false
		}
	}
	return w.r.running.Load()
}

func (w *worker) nextProxy() string {
	pool := w.r.proxies
	switch w.r.pipeline.Proxy.Mode {
	case runtime.ProxyModeRotate:
		if p, ok := pool.Next(); ok {
			return p.String()
		}
	case runtime.ProxyModeSticky:
		if w.proxy != "" && !pool.IsBanned(w.proxy) {
			return w.proxy
		}
		if p, ok := pool.Next(); ok {
			w.proxy = p.String()
			return w.proxy
		}
	}
	return ""
}

func (w *worker) newExecution(ctx context.Context, proxy string) *runtime.Execution {
	p := w.r.pipeline
	execution := runtime.NewExecution(ctx, w.session, w.r.transport)
	execution.Proxy = proxy
	execution.CustomStatus = p.Runner.CustomStatusName
	execution.Fingerprint = runtime.Fingerprint{
		Browser:   p.Browser.Browser,
		JA3:       p.Browser.JA3,
		HTTP2FP:   p.Browser.HTTP2Fingerprint,
		UserAgent: p.Browser.UserAgent,
	}
	return execution
}

func (w *worker) process(ctx context.Context, line Line, proxy string) {
	r := w.r
	ctx, span := r.tracer.Start(ctx, "runner.record", trace.WithAttributes(
		attribute.Int("worker", w.id),
		attribute.Int("retries", line.Retries),
	))
	defer span.End()

	execution := w.newExecution(ctx, proxy)
	w.seed(execution, line.Value)

	err := w.execute(execution, r.pipeline.Blocks)
	r.stats.processed.Add(1)

	entry := w.classify(ctx, execution, line, proxy, err)
	r.feed.push(entry)

	r.records.Add(ctx, 1, metric.WithAttributes(attribute.String("status", entry.Status)))
	span.SetAttributes(attribute.String("status", entry.Status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// execute walks blocks and turns a panic in any of them into an Error outcome
// for this record alone.
func (w *worker) execute(execution *runtime.Execution, blocks []runtime.Block) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			execution.Status = runtime.StatusError
			err = fmt.Errorf("%w: %v", ErrBlockPanic, rec)
			w.r.l.ErrorContext(execution, "Block panicked",
				"worker", w.id,
				"session", w.session,
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()
	return w.r.executor.ExecuteBlocks(execution, blocks)
}

// seed splits the record into the configured input slices and copies the startup globals.
func (w *worker) seed(execution *runtime.Execution, line string) {
	data := w.r.pipeline.Data
	parts := []string{line}
	if data.Separator != "" {
		parts = strings.Split(line, data.Separator)
	}
	for i, name := range data.Slices {
		if i < len(parts) {
			execution.Variables.SetInput(name, parts[i])
		}
	}
	for k, v := range w.globals {
		execution.Variables.SetGlobal(k, v)
	}
}

// classify bumps exactly one counter for the outcome and routes the record.
func (w *worker) classify(ctx context.Context, execution *runtime.Execution, line Line, proxy string, err error) ResultEntry {
	r := w.r
	entry := ResultEntry{
		Data:   line.Value,
		Status: execution.Status.Label(),
		Proxy:  proxy,
		Time:   time.Now(),
	}
	hit := HitResult{Data: line.Value, Captures: execution.Variables.Captures(), Proxy: proxy}

	switch execution.Status {
	case runtime.StatusSuccess:
		r.stats.hits.Add(1)
		entry.Captures = hit.Captures
		r.record(ctx, string(runtime.StatusSuccess), hit)
		r.emit(ctx, hit)
	case runtime.StatusFail:
		r.stats.fails.Add(1)
	case runtime.StatusBan:
		r.stats.bans.Add(1)
		if proxy != "" {
			r.proxies.Ban(proxy)
		}
	case runtime.StatusRetry:
		r.stats.retries.Add(1)
		maxRetries := r.pipeline.Runner.MaxRetries
		if maxRetries > 0 && line.Retries >= maxRetries {
			r.record(ctx, string(runtime.StatusRetry), hit)
		} else {
			r.data.ReturnLine(line.Value, line.Retries+1)
		}
	case runtime.StatusCustom:
		r.stats.customs.Add(1)
		entry.Captures = hit.Captures
		r.record(ctx, execution.StatusName(), hit)
	case runtime.StatusError:
		r.stats.errors.Add(1)
		entry.Error = errorString(err)
	default:
		if err != nil {
			r.stats.errors.Add(1)
			entry.Status = runtime.StatusError.Label()
			entry.Error = err.Error()
		} else {
			entry.Status = runtime.StatusNone.Label()
		}
	}
	return entry
}

func (r *Runner) record(ctx context.Context, status string, hit HitResult) {
	if err := r.output.Write(status, hit); err != nil {
		r.l.ErrorContext(ctx, "Failed to write output",
			"status", status,
			"error", err)
	}
	if r.sink != nil {
		hit.Captures = ApplyCaptureFilters(hit.Captures, r.pipeline.Output.CaptureFilters)
		if err := r.sink.SaveHit(ctx, r.pipeline.Name, status, hit); err != nil {
			r.l.ErrorContext(ctx, "Failed to save hit",
				"status", status,
				"error", err)
		}
	}
}

// emit blocks until the hit is taken, so a slow consumer slows the workers
// down. Only Stop or cancellation of ctx drops a hit that has no room.
func (r *Runner) emit(ctx context.Context, hit HitResult) {
	select {
	case r.hits <- hit:
		return
	default:
	}

	select {
	case r.hits <- hit:
	case <-r.stopped:
		r.l.WarnContext(ctx, fmt.Sprintf("Run stopped, dropping hit: %s", hit.Data))
	case <-ctx.Done():
		r.l.WarnContext(ctx, fmt.Sprintf("Run cancelled, dropping hit: %s", hit.Data))
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

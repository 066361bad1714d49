// Package finder runs one find-common request: it enforces the upload
// bounds, stages every upload, normalizes them in parallel, drops the ones
// that fail, intersects the survivors and always cleans up after itself.
package finder

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"common-addresses/internal/intersect"
	"common-addresses/internal/logging"
	"common-addresses/internal/staging"
)

// Hard bounds on the number of uploads per request.
const (
	MinFiles = 2
	MaxFiles = 10
)

const cleanupTimeout = 10 * time.Second

// Config tunes a Finder.
type Config struct {
	MinFiles    int
	MaxFiles    int
	Concurrency int
}

// DefaultConfig returns the standard bounds with one worker per CPU.
func DefaultConfig() Config {
	return Config{MinFiles: MinFiles, MaxFiles: MaxFiles, Concurrency: runtime.GOMAXPROCS(0)}
}

// Upload is one file of a request.
type Upload struct {
	Name    string
	Content []byte
}

// Result is the outcome of a successful Find.
type Result struct {
	Common   []string
	Received int
	Accepted int
	Dropped  []Dropped
	// Consumed is how many accepted files the intersection read before it
	// ran empty.
	Consumed int
}

// Count is the number of common tokens.
func (r *Result) Count() int { return len(r.Common) }

// Summary is what a Recorder receives after every Find. It never carries
// token data.
type Summary struct {
	RequestID string
	Received  int
	Accepted  int
	Dropped   int
	Common    int
	Duration  time.Duration
	Outcome   string
	Err       string
}

// Recorder persists run summaries.
type Recorder interface {
	RecordRun(ctx context.Context, s Summary) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, s Summary) error

func (f RecorderFunc) RecordRun(ctx context.Context, s Summary) error { return f(ctx, s) }

// Observer receives counters as a request progresses.
type Observer interface {
	FileDropped(reason string)
	CleanupFailed()
	FindCompleted(outcome string, common int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) FileDropped(string)                       {}
func (nopObserver) CleanupFailed()                           {}
func (nopObserver) FindCompleted(string, int, time.Duration) {}

// Option customizes a Finder.
type Option func(*Finder)

// WithRecorder stores a summary of every run.
func WithRecorder(r Recorder) Option { return func(f *Finder) { f.recorder = r } }

// WithObserver reports counters to o.
func WithObserver(o Observer) Option { return func(f *Finder) { f.observer = o } }

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(f *Finder) { f.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(f *Finder) { f.now = now } }

const tracerName = "common-addresses/finder"

// Finder orchestrates find-common requests.
type Finder struct {
	cfg      Config
	store    staging.Store
	recorder Recorder
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a Finder. The file bounds are clamped to [MinFiles, MaxFiles].
func New(cfg Config, store staging.Store, opts ...Option) *Finder {
	if cfg.MinFiles < MinFiles || cfg.MinFiles > MaxFiles {
		cfg.MinFiles = MinFiles
	}
	if cfg.MaxFiles < cfg.MinFiles || cfg.MaxFiles > MaxFiles {
		cfg.MaxFiles = MaxFiles
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.Concurrency > cfg.MaxFiles {
		cfg.Concurrency = cfg.MaxFiles
	}

	f := &Finder{
		cfg:      cfg,
		store:    store,
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the effective configuration.
func (f *Finder) Config() Config { return f.cfg }

type artifact struct {
	area staging.Area
	name string
}

// artifacts tracks everything staged by one request.
type artifacts struct {
	mu    sync.Mutex
	items []artifact
}

func (a *artifacts) add(area staging.Area, name string) {
	a.mu.Lock()
	a.items = append(a.items, artifact{area: area, name: name})
	a.mu.Unlock()
}

type fileOutcome struct {
	tokens  []string
	dropped *Dropped
}

// Find computes the tokens common to every usable upload.
func (f *Finder) Find(ctx context.Context, uploads []Upload) (res *Result, err error) {
	start := f.now()
	rid := logging.RequestID(ctx)

	ctx, span := f.tracer.Start(ctx, "finder.Find",
		trace.WithAttributes(attribute.Int("files.received", len(uploads))))
	defer span.End()

	staged := &artifacts{}
	defer f.cleanup(ctx, rid, staged)
	defer func() { f.finish(ctx, rid, start, len(uploads), res, err, span) }()

	if len(uploads) < f.cfg.MinFiles {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientFiles, len(uploads))
	}
	if len(uploads) > f.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(uploads), f.cfg.MaxFiles)
	}

	outcomes := make([]fileOutcome, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, up := range uploads {
		g.Go(func() error {
			out, err := f.process(gctx, rid, up, staged)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	survivors := make([][]string, 0, len(uploads))
	var dropped []Dropped
	for _, out := range outcomes {
		if out.dropped != nil {
			dropped = append(dropped, *out.dropped)
			continue
		}
		survivors = append(survivors, out.tokens)
	}

	if len(survivors) < f.cfg.MinFiles {
		return nil, &DroppedFilesError{
			Received: len(uploads),
			Accepted: len(survivors),
			Dropped:  dropped,
		}
	}

	_, ispan := f.tracer.Start(ctx, "finder.intersect",
		trace.WithAttributes(attribute.Int("files.accepted", len(survivors))))
	common, stats := intersect.IntersectStats(survivors)
	ispan.SetAttributes(
		attribute.Int("intersect.consumed", stats.Consumed),
		attribute.Int("intersect.common", len(common)),
	)
	ispan.End()

	return &Result{
		Common:   common,
		Received: len(uploads),
		Accepted: len(survivors),
		Dropped:  dropped,
		Consumed: stats.Consumed,
	}, nil
}

// process stages one upload, normalizes it and stages its formatted copy.
// Normalization failures become a drop; staging failures abort the request.
func (f *Finder) process(ctx context.Context, rid string, up Upload, staged *artifacts) (fileOutcome, error) {
	format := intersect.DetectFormat(up.Name)
	ctx, span := f.tracer.Start(ctx, "finder.normalize", trace.WithAttributes(
		attribute.String("file.name", up.Name),
		attribute.String("file.format", format.String()),
		attribute.Int("file.bytes", len(up.Content)),
	))
	defer span.End()

	stored := staging.ArtifactName(up.Name, f.now())
	if err := f.store.Put(ctx, staging.AreaUploads, stored, up.Content); err != nil {
		span.SetStatus(codes.Error, "stage original")
		return fileOutcome{}, fmt.Errorf("%w: stage %s: %v", ErrStaging, up.Name, err)
	}
	staged.add(staging.AreaUploads, stored)

	tokens, err := intersect.Normalize(up.Content, format)
	if err != nil {
		reason := dropReason(err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("file.dropped", reason))
		f.observer.FileDropped(reason)
		logging.Warn("file_dropped", logging.Fields{
			"request_id": rid,
			"file":       up.Name,
			"format":     format.String(),
			"reason":     reason,
		})
		return fileOutcome{dropped: &Dropped{Name: up.Name, Reason: reason, Detail: err.Error()}}, nil
	}
	span.SetAttributes(attribute.Int("file.tokens", len(tokens)))

	formatted := staging.FormattedName(stored)
	if err := f.store.Put(ctx, staging.AreaFormatted, formatted, intersect.Render(tokens)); err != nil {
		span.SetStatus(codes.Error, "stage formatted copy")
		return fileOutcome{}, fmt.Errorf("%w: stage formatted %s: %v", ErrStaging, up.Name, err)
	}
	staged.add(staging.AreaFormatted, formatted)

	return fileOutcome{tokens: tokens}, nil
}

// cleanup deletes every staged artifact. It runs on every exit path and is
// detached from request cancellation.
func (f *Finder) cleanup(ctx context.Context, rid string, staged *artifacts) {
	staged.mu.Lock()
	items := staged.items
	staged.items = nil
	staged.mu.Unlock()
	if len(items) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, a := range items {
		if err := f.store.Delete(cctx, a.area, a.name); err != nil {
			f.observer.CleanupFailed()
			logging.Error("artifact_cleanup_failed", logging.Fields{
				"request_id": rid,
				"area":       string(a.area),
				"name":       a.name,
			}, err)
		}
	}
}

func (f *Finder) finish(ctx context.Context, rid string, start time.Time, received int, res *Result, err error, span trace.Span) {
	elapsed := f.now().Sub(start)
	outcome := Outcome(err)

	summary := Summary{
		RequestID: rid,
		Received:  received,
		Duration:  elapsed,
		Outcome:   outcome,
	}
	if res != nil {
		summary.Accepted = res.Accepted
		summary.Dropped = len(res.Dropped)
		summary.Common = res.Count()
	}
	var dfe *DroppedFilesError
	if errors.As(err, &dfe) {
		summary.Accepted = dfe.Accepted
		summary.Dropped = len(dfe.Dropped)
	}
	if err != nil {
		summary.Err = runError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("find.outcome", outcome))

	f.observer.FindCompleted(outcome, summary.Common, elapsed)

	fields := logging.Fields{
		"request_id": rid,
		"outcome":    outcome,
		"received":   summary.Received,
		"accepted":   summary.Accepted,
		"dropped":    summary.Dropped,
		"common":     summary.Common,
		"ms":         elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logging.Info("find_common_complete", fields)

	if f.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if rerr := f.recorder.RecordRun(rctx, summary); rerr != nil {
		logging.Error("run_record_failed", logging.Fields{"request_id": rid}, rerr)
	}
}

// Package warmup crawls department hierarchies in the background so that
// request paths never have to, and tracks service readiness.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyellow/nycu-course-go/internal/acysem"
	"github.com/garyellow/nycu-course-go/internal/ctxutil"
	"github.com/garyellow/nycu-course-go/internal/department"
	"github.com/garyellow/nycu-course-go/internal/logger"
	"github.com/garyellow/nycu-course-go/internal/metrics"
	"github.com/garyellow/nycu-course-go/internal/sliceutil"
	"github.com/garyellow/nycu-course-go/internal/stringutil"
)

// Crawler resolves the department hierarchy of a period.
type Crawler interface {
	Resolve(ctx context.Context, period string) ([]department.Department, error)
}

// Saver persists a crawled department list.
type Saver interface {
	Save(ctx context.Context, period string, departments []department.Department) error
}

// PeriodLister lists the periods the catalog knows about.
type PeriodLister interface {
	FetchAcademicPeriods(ctx context.Context) ([]string, error)
}

// run is one crawl of one period. count and err are written before done is
// closed.
type run struct {
	done  chan struct{}
	count int
	err   error
}

// DepartmentWarmer runs department crawls, at most one per period at a time.
type DepartmentWarmer struct {
	crawler Crawler
	saver   Saver
	metrics *metrics.Metrics
	log     *logger.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]*run
}

// NewDepartmentWarmer creates a warmer. Each crawl is bounded by timeout
// when it is positive. m may be nil.
func NewDepartmentWarmer(crawler Crawler, saver Saver, log *logger.Logger, m *metrics.Metrics, timeout time.Duration) *DepartmentWarmer {
	ctx, cancel := context.WithCancel(context.Background())
	return &DepartmentWarmer{
		crawler:  crawler,
		saver:    saver,
		metrics:  m,
		log:      log.WithModule("warmup"),
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*run),
	}
}

// Start begins crawling period in the background and returns a channel that
// is closed when the crawl finishes. If a crawl of period is already running,
// Start returns that crawl's channel instead of starting another.
//
// The crawl outlives ctx; only request-scoped tracing values are kept.
// Close cancels it.
func (w *DepartmentWarmer) Start(ctx context.Context, period string) <-chan struct{} {
	return w.start(ctx, period).done
}

func (w *DepartmentWarmer) start(ctx context.Context, period string) *run {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r, ok := w.inflight[period]; ok {
		return r
	}
	r := &run{done: make(chan struct{})}
	if w.ctx.Err() != nil {
		r.err = w.ctx.Err()
		close(r.done)
		return r
	}
	w.inflight[period] = r

	crawlCtx := ctxutil.WithPeriod(w.ctx, period)
	if id, ok := ctxutil.GetRequestID(ctx); ok {
		crawlCtx = ctxutil.WithRequestID(crawlCtx, id)
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.err = fmt.Errorf("department crawl panicked: %v", rec)
				w.log.WithField("panic", rec).WithField("period", period).Error("Panic in department crawl")
			}
			w.mu.Lock()
			delete(w.inflight, period)
			w.mu.Unlock()
			close(r.done)
		}()
		r.count, r.err = w.crawl(crawlCtx, period)
	}()
	return r
}

// Warm crawls period and waits for the result. A crawl of period that is
// already running is joined rather than repeated.
func (w *DepartmentWarmer) Warm(ctx context.Context, period string) (int, error) {
	r := w.start(ctx, period)
	select {
	case <-r.done:
		return r.count, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// InProgress reports whether a crawl of period is running.
func (w *DepartmentWarmer) InProgress(period string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inflight[period]
	return ok
}

// Close cancels running crawls and waits for them to return.
func (w *DepartmentWarmer) Close() {
	w.cancel()
	w.wg.Wait()
}

func (w *DepartmentWarmer) crawl(ctx context.Context, period string) (int, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	log := w.log.WithField("period", period)
	log.Info("Starting department crawl")

	departments, err := w.crawler.Resolve(ctx, period)
	if err == nil {
		err = w.saver.Save(ctx, period, departments)
	}
	duration := time.Since(start)
	w.metrics.RecordDepartmentWarmup(period, len(departments), err, duration)
	if err != nil {
		log.WithError(err).WithField("duration", duration).Warn("Department crawl failed")
		return 0, err
	}

	log.WithField("departments", len(departments)).
		WithField("duration", duration).
		Info("Department crawl complete")
	return len(departments), nil
}

// Stats summarizes a Run.
type Stats struct {
	Periods     []string
	Departments int
}

// Options configures Run.
type Options struct {
	// Periods to crawl. When empty, the most recent Latest periods reported
	// by the catalog are used.
	Periods []string
	Latest  int
	// Readiness is marked ready once every period has been attempted.
	Readiness *ReadinessState
}

// Run crawls the requested periods one after another. A failed period does
// not stop the others; their errors are joined.
func Run(ctx context.Context, lister PeriodLister, warmer *DepartmentWarmer, log *logger.Logger, opts Options) (*Stats, error) {
	stats := &Stats{}
	if opts.Readiness != nil {
		defer opts.Readiness.MarkReady()
	}

	periods := opts.Periods
	if len(periods) == 0 {
		all, err := lister.FetchAcademicPeriods(ctx)
		if err != nil {
			return stats, fmt.Errorf("list academic periods: %w", err)
		}
		periods = acysem.Latest(all, opts.Latest)
	}
	log.WithField("periods", periods).Info("Starting department warm-up")

	var errs []error
	for _, period := range periods {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("warm-up canceled: %w", ctx.Err()))
			break
		}
		n, err := warmer.Warm(ctx, period)
		if err != nil {
			errs = append(errs, fmt.Errorf("period %s: %w", period, err))
			continue
		}
		stats.Periods = append(stats.Periods, period)
		stats.Departments += n
	}

	log.WithField("periods", stats.Periods).
		WithField("departments", stats.Departments).
		Info("Department warm-up complete")
	return stats, errors.Join(errs...)
}

// ParsePeriods splits a comma-separated period list and drops invalid codes.
func ParsePeriods(s string) []string {
	var periods []string
	for _, p := range stringutil.SplitAny(s, ",") {
		if acysem.Validate(p) == nil {
			periods = append(periods, p)
		}
	}
	return sliceutil.Deduplicate(periods, func(p string) string { return p })
}

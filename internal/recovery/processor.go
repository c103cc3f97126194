// Package recovery drains the es_queue table: it claims rows old enough to
// have been missed by their original write and replays them through the
// indexer registered for their document type.
package recovery

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Aman-CERP/issuesync/internal/config"
	serrors "github.com/Aman-CERP/issuesync/internal/errors"
	"github.com/Aman-CERP/issuesync/internal/index"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// ResilientIndexer replays queue items of one document type.
type ResilientIndexer interface {
	IndexType() string
	Index(ctx context.Context, s *store.Session, items []*store.QueueItem) index.IndexingResult
}

// Config tunes a Processor.
type Config struct {
	// InitialDelay and Interval schedule runs started by Start.
	InitialDelay time.Duration
	Interval     time.Duration
	// MinAge skips rows younger than this; their original write may still be in flight.
	MinAge time.Duration
	// LoopLimit caps the rows claimed per loop.
	LoopLimit int
	// FailureRatio ends a run once a loop's success ratio is at or below it.
	FailureRatio float64
	// BreakerMaxFailures failed scheduled runs open the breaker for BreakerReset.
	BreakerMaxFailures int
	BreakerReset       time.Duration
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		InitialDelay:       5 * time.Minute,
		Interval:           5 * time.Minute,
		MinAge:             5 * time.Minute,
		LoopLimit:          10000,
		FailureRatio:       0.7,
		BreakerMaxFailures: 5,
		BreakerReset:       30 * time.Minute,
	}
}

// ConfigFrom converts the recovery section of the configuration file.
func ConfigFrom(c config.RecoveryConfig) Config {
	return Config{
		InitialDelay:       c.InitialDelayDuration(),
		Interval:           c.IntervalDuration(),
		MinAge:             c.MinAgeDuration(),
		LoopLimit:          c.LoopLimit,
		FailureRatio:       c.FailureRatio,
		BreakerMaxFailures: c.BreakerMaxFailures,
		BreakerReset:       c.BreakerResetDuration(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MinAge < 0 {
		c.MinAge = 0
	}
	if c.LoopLimit <= 0 {
		c.LoopLimit = d.LoopLimit
	}
	if c.FailureRatio < 0 || c.FailureRatio >= 1 {
		c.FailureRatio = d.FailureRatio
	}
	if c.BreakerMaxFailures <= 0 {
		c.BreakerMaxFailures = d.BreakerMaxFailures
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = d.BreakerReset
	}
	return c
}

// Report summarizes one Recover call.
type Report struct {
	Loops    int
	Result   index.IndexingResult
	Duration time.Duration
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock replaces time.Now, for the age cutoff and the breaker.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// Processor replays queued rows. Runs need no coordination with each other:
// every replay is an idempotent overwrite, so a row processed twice is harmless.
type Processor struct {
	db       *store.DB
	indexers map[string]ResilientIndexer
	now      func() time.Time

	mu      sync.Mutex
	cfg     Config
	breaker *serrors.CircuitBreaker

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	wake     chan struct{}
}

// NewProcessor creates a processor dispatching to indexers by IndexType.
func NewProcessor(db *store.DB, cfg Config, indexers []ResilientIndexer, opts ...Option) *Processor {
	p := &Processor{
		db:       db,
		indexers: make(map[string]ResilientIndexer, len(indexers)),
		now:      time.Now,
		cfg:      cfg.withDefaults(),
		wake:     make(chan struct{}, 1),
	}
	for _, x := range indexers {
		p.indexers[x.IndexType()] = x
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = p.newBreaker(p.cfg)
	return p
}

func (p *Processor) newBreaker(cfg Config) *serrors.CircuitBreaker {
	return serrors.NewCircuitBreaker("recovery",
		serrors.WithMaxFailures(cfg.BreakerMaxFailures),
		serrors.WithResetTimeout(cfg.BreakerReset),
		serrors.WithClock(p.now))
}

// Config returns the current tuning.
func (p *Processor) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// UpdateConfig swaps the tuning. It applies from the next loop; a new
// schedule takes effect after the pending wait. Changing the breaker settings
// resets the breaker.
func (p *Processor) UpdateConfig(cfg Config) {
	cfg = cfg.withDefaults()
	p.mu.Lock()
	old := p.cfg
	p.cfg = cfg
	if old.BreakerMaxFailures != cfg.BreakerMaxFailures || old.BreakerReset != cfg.BreakerReset {
		p.breaker = p.newBreaker(cfg)
	}
	p.mu.Unlock()

	slog.Info("recovery_config_updated",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("min_age", cfg.MinAge),
		slog.Int("loop_limit", cfg.LoopLimit),
		slog.Float64("failure_ratio", cfg.FailureRatio))
}

// Breaker returns the breaker gating scheduled runs.
func (p *Processor) Breaker() *serrors.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.breaker
}

// Recover replays queued rows created at least MinAge ago, LoopLimit rows per
// loop, oldest first. It loops while loops succeed and stops on an empty loop
// or one whose success ratio is at or below FailureRatio. Rows that fail stay
// queued for the next run.
func (p *Processor) Recover(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	for {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		cfg := p.Config()

		s := p.db.NewSession()
		items, err := s.SelectQueueForRecovery(ctx, p.now().Add(-cfg.MinAge), cfg.LoopLimit)
		if err != nil {
			_ = s.Close()
			report.Duration = time.Since(start)
			return report, serrors.New(serrors.ErrCodeRecoveryFailed, "failed to claim queue items", err)
		}
		if len(items) == 0 {
			_ = s.Close()
			break
		}

		result := p.dispatch(ctx, s, items)
		_ = s.Close()

		report.Loops++
		report.Result = report.Result.Add(result)
		if result.Total == 0 || result.SuccessRatio() <= cfg.FailureRatio {
			slog.Warn("recovery_loop_stopped",
				slog.Int("loop", report.Loops),
				slog.Int("total", result.Total),
				slog.Int("failures", result.Failures),
				slog.Float64("success_ratio", result.SuccessRatio()))
			break
		}
	}

	report.Duration = time.Since(start)
	if report.Loops > 0 {
		slog.Info("recovery_complete",
			slog.Int("loops", report.Loops),
			slog.Int("total", report.Result.Total),
			slog.Int("success", report.Result.Success),
			slog.Int("failures", report.Result.Failures),
			slog.Duration("duration", report.Duration))
	}
	return report, nil
}

// dispatch hands items to the indexer of their document type. Items of an
// unknown type are logged, counted as failures and left queued.
func (p *Processor) dispatch(ctx context.Context, s *store.Session, items []*store.QueueItem) index.IndexingResult {
	byType := make(map[string][]*store.QueueItem)
	for _, item := range items {
		byType[item.DocType] = append(byType[item.DocType], item)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	slices.Sort(types)

	var result index.IndexingResult
	for _, docType := range types {
		group := byType[docType]
		x, ok := p.indexers[docType]
		if !ok {
			slog.Error("unknown_doc_type",
				slog.String("doc_type", docType),
				slog.Int("items", len(group)),
				slog.String("hint", "no indexer handles this type; the rows stay in es_queue"))
			result = result.Add(index.IndexingResult{Total: len(group), Failures: len(group)})
			continue
		}
		result = result.Add(x.Index(ctx, s, group))
	}
	return result
}

// Start schedules runs: the first after InitialDelay, then every Interval.
// Scheduled runs are skipped while the breaker is open.
func (p *Processor) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	cfg := p.Config()
	slog.Debug("recovery processor started",
		slog.Duration("initial_delay", cfg.InitialDelay),
		slog.Duration("interval", cfg.Interval))

	p.wg.Add(1)
	go p.run(cfg.InitialDelay)
}

// Trigger asks a started processor for a run without waiting for the interval.
func (p *Processor) Trigger() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the schedule and waits for a run in progress to finish.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		slog.Debug("recovery processor stopped")
	})
}

func (p *Processor) run(delay time.Duration) {
	defer p.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
		case <-p.wake:
			timer.Stop()
		}
		p.runScheduled()
		timer.Reset(p.Config().Interval)
	}
}

func (p *Processor) runScheduled() {
	breaker := p.Breaker()
	if !breaker.Allow() {
		slog.Debug("recovery_run_skipped",
			slog.String("breaker", breaker.State().String()),
			slog.Int("failures", breaker.Failures()))
		return
	}

	report, err := p.Recover(p.ctx)
	switch {
	case err != nil && p.ctx.Err() != nil:
		return
	case err != nil:
		breaker.RecordFailure()
		slog.Warn("recovery_run_failed", serrors.LogAttrs(err)...)
	case report.Result.Total > 0 && report.Result.Success == 0:
		breaker.RecordFailure()
	default:
		breaker.RecordSuccess()
	}
}

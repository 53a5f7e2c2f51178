package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dealwatch/internal/metrics"
)

// EngineConfig bounds pagination and pacing for one rule. A negative
// PageDelay disables pacing entirely; zero means the default.
type EngineConfig struct {
	MaxPages  int           // default 5
	PageSize  int           // default 100
	PageDelay time.Duration // pause between page fetches, default 1.5s
}

const (
	defaultMaxPages  = 5
	defaultPageSize  = 100
	defaultPageDelay = 1500 * time.Millisecond
)

// Engine runs scan cycles: it walks the active rule set, paginates the
// search endpoint per rule, filters items and hands the surviving batch
// to the notifier. Cycles are strictly sequential; the engine itself
// spawns no goroutines.
type Engine struct {
	active   *ActiveSet
	searcher Searcher
	hist     History
	notifier Notifier
	clock    Clock
	cfg      EngineConfig
	logger   *zap.Logger
}

// NewEngine constructs an Engine. A nil clock falls back to the system
// clock and a nil logger to a no-op logger.
func NewEngine(
	active *ActiveSet,
	searcher Searcher,
	hist History,
	notifier Notifier,
	clock Clock,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = defaultPageDelay
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		active:   active,
		searcher: searcher,
		hist:     hist,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunCycle executes one full pass over the active rule set. The active
// reference is re-read before each rule, so a hot reload mid-cycle
// affects only the rules not yet processed. History is persisted
// before notification; a failed push never causes re-notification.
func (e *Engine) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	log := e.logger.With(zap.String("cycle_id", cycleID))
	start := e.clock.Now()

	var batch []Item
	for i := 0; ; i++ {
		if ctx.Err() != nil {
			break
		}
		rs := e.active.Load()
		if rs == nil || i >= len(rs.Rules) {
			break
		}
		batch = append(batch, e.ProcessRule(ctx, rs.Rules[i], rs.SatisfyNum)...)
	}

	metrics.IncCycles()
	metrics.AddItemsMatched(len(batch))
	log.Info("cycle finished",
		zap.Int("new_items", len(batch)),
		zap.Duration("elapsed", time.Since(start)))

	if len(batch) == 0 {
		return nil
	}
	if err := e.hist.Save(); err != nil {
		log.Error("history save failed", zap.Error(err))
	}
	if err := e.notifier.Notify(ctx, batch); err != nil {
		metrics.IncNotifyFailures()
		log.Error("notification failed", zap.Error(err))
	}
	return nil
}

// ProcessRule paginates the search endpoint for one rule, applying the
// match filter to every returned item. Accepted items are recorded
// into history immediately so later pages and later rules in the same
// cycle cannot re-accept them. Pagination stops at the page cap, on a
// genuinely empty page, or once satisfy hits have accumulated; a page
// fetch error only skips that page.
func (e *Engine) ProcessRule(ctx context.Context, rule Rule, satisfy int) []Item {
	key := SearchKeyFor(rule)
	log := e.logger.With(zap.String("keyword", rule.Keyword))
	if key == "" {
		log.Info("empty search key, scanning site-wide feed")
	}

	// Burst 1 makes the first fetch immediate and paces every
	// following page, so early-stop never pays a trailing delay.
	pacer := rate.NewLimiter(rate.Inf, 1)
	if e.cfg.PageDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(e.cfg.PageDelay), 1)
	}

	var hits []Item
	for page := 0; page < e.cfg.MaxPages; page++ {
		if err := pacer.Wait(ctx); err != nil {
			break
		}
		items, err := e.searcher.Search(ctx, key, page*e.cfg.PageSize)
		if err != nil {
			metrics.IncPageErrors()
			log.Warn("page fetch failed, treating as empty",
				zap.Int("page", page), zap.Error(err))
			continue
		}
		metrics.IncPagesFetched()
		if len(items) == 0 {
			break
		}

		now := e.clock.Now()
		for _, item := range items {
			if !Decide(item, rule, e.hist, now, log) {
				continue
			}
			e.hist.Record(item.ID, now.UnixMilli())
			hits = append(hits, item)
			log.Info("new item matched",
				zap.String("id", item.ID), zap.String("title", item.Title))
			if satisfy > 0 && len(hits) >= satisfy {
				return hits
			}
		}
	}
	return hits
}

// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"dealwatch/internal/config"
	"dealwatch/internal/history"
	"dealwatch/internal/logging"
	"dealwatch/internal/metrics"
	"dealwatch/internal/monitor"
	"dealwatch/internal/notify"
	"dealwatch/internal/ops"
	"dealwatch/internal/sched"
	"dealwatch/internal/search"
	"dealwatch/internal/watch"
)

// App holds the shared, long-lived services for the monitor process.
// It is built once at startup and owns their lifecycle.
type App struct {
	Logger  *zap.Logger
	Config  *config.Config
	History *history.Store
	Active  *monitor.ActiveSet
	Engine  *monitor.Engine

	watcher   *watch.Watcher
	scheduler *sched.Scheduler
	opsServer *http.Server
}

// New wires every service from the rule file at cfgPath. Any failure
// here is the fatal-startup case.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	active := &monitor.ActiveSet{}
	rs, err := monitor.Compile(cfg.RawRules())
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	active.Store(rs)
	logger.Info("rules compiled", zap.Int("count", len(rs.Rules)))

	hist := history.Open(history.SnapshotPath(cfgPath), logger)
	logger.Info("history loaded", zap.Int("entries", hist.Len()))

	searcher := search.New(search.Config{
		BaseURL:   cfg.Search.BaseURL,
		UserAgent: cfg.Search.UserAgent,
		Timeout:   cfg.SearchTimeout(),
	}, logger)

	var notifier monitor.Notifier
	if cfg.TelegramBotToken != "" {
		notifier = notify.NewTelegram(notify.TelegramConfig{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
		}, logger)
	} else {
		logger.Warn("no telegram bot token configured, logging matches instead")
		notifier = notify.NewLogNotifier(logger)
	}

	engine := monitor.NewEngine(active, searcher, hist, notifier, nil, monitor.EngineConfig{}, logger)

	a := &App{
		Logger:  logger,
		Config:  cfg,
		History: hist,
		Active:  active,
		Engine:  engine,
	}

	a.watcher = watch.New(cfgPath, a.reloadRules, logger)
	a.scheduler = sched.New(cfg.Interval(), engine.RunCycle, logger)
	a.opsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           ops.NewServer(active, hist, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

// reloadRules re-reads the rule file and swaps the active set. Errors
// leave the previous set untouched; the watcher logs them.
func (a *App) reloadRules() error {
	cfg, err := config.Load(a.Config.Path)
	if err != nil {
		return err
	}
	rs, err := monitor.Compile(cfg.RawRules())
	if err != nil {
		return err
	}
	a.Active.Store(rs)
	a.Logger.Info("active rule set swapped", zap.Int("count", len(rs.Rules)))
	return nil
}

// Run starts the ops server and watcher, then blocks in the scheduler
// until the context finishes.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("ops server failed", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.watcher.Run(ctx); err != nil {
			a.Logger.Error("rule watcher failed", zap.Error(err))
		}
	}()

	a.Logger.Info("monitor started",
		zap.Duration("interval", a.Config.Interval()),
		zap.Int("ops_port", a.Config.Server.Port))
	a.scheduler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.opsServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("ops server shutdown", zap.Error(err))
	}
	wg.Wait()
	return nil
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.Logger.Sync()
}

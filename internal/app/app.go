package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chatwatch/internal/chat"
	"chatwatch/internal/config"
	"chatwatch/internal/notify"
	"chatwatch/internal/runtime/supervisor"
	"chatwatch/internal/storage"
	"chatwatch/internal/watcher"
	"chatwatch/pkg/logx"
)

// App wires config, logging, storage, the notification pipeline and one
// watcher per site under a single supervisor.
type App struct {
	cfgPath string
	cfgm    *config.Manager

	log   logx.Logger
	logs  *logx.Service
	store storage.Store
	notif *notify.Service
	out   io.Writer

	sup      *supervisor.Supervisor
	watchers []*watcher.Watcher
	stats    *statsJob

	mu  sync.Mutex
	cfg *config.Config

	retention time.Duration

	failed    atomic.Bool
	remaining atomic.Int64
	allDone   chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		out:     logx.Stdout(),
		cfg:     cfg,
		allDone: make(chan struct{}),
	}

	// Message history (optional).
	sc, retention, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	a.retention = retention
	if sc.Driver != "" {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		if st != nil {
			log.Info("message history enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
		}
	}

	// Notification sinks.
	sinks, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	a.notif = notify.New(mapNotify(cfg), log.With(logx.String("comp", "notify")), sinks...)

	return a, nil
}

// SetOutput redirects the per-message console feed (tests).
func (a *App) SetOutput(w io.Writer) { a.out = w }

// Start launches one watcher per configured site plus the auxiliary tasks
// (config watch, reload loop, stats job). It does not block.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithObserver(a.observeExit),
	)

	a.notif.Start(a.sup.Context())

	tcfg, err := mapTransport(cfg)
	if err != nil {
		return err
	}

	a.remaining.Store(int64(len(cfg.Sites)))
	for _, sc := range cfg.Sites {
		site := chat.Site{Name: sc.Name, User: sc.User, Token: sc.Token, Host: cfg.API.Host}
		tr := chat.NewHTTPTransport(site, tcfg)
		client := chat.NewQueueClient(site, tr, a.log)
		w := watcher.New(site, client, a.out, a.notif, a.store, a.log)
		a.watchers = append(a.watchers, w)

		name := watchTaskName(site.Name)
		if cfg.Watch.Restart {
			a.sup.GoRestart(name, w.Run, supervisor.RestartPolicy{
				MinBackoff:  time.Second,
				MaxBackoff:  time.Minute,
				MaxRestarts: cfg.Watch.MaxRestarts,
			})
		} else {
			a.sup.Go(name, w.Run)
		}
	}

	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", a.reloadLoop)

	if cfg.Stats.Enabled {
		job, err := startStats(cfg.Stats, a)
		if err != nil {
			return err
		}
		a.stats = job
	}

	a.log.Info("started", logx.Int("sites", len(cfg.Sites)))
	return nil
}

const watchPrefix = "watch."

func watchTaskName(site string) string { return watchPrefix + site }

// observeExit runs the moment any supervised task stops. Watcher failures
// are reported immediately with the site attached; the remaining sites keep
// running untouched.
func (a *App) observeExit(o supervisor.Outcome) {
	if !strings.HasPrefix(o.Name, watchPrefix) {
		return
	}
	site := strings.TrimPrefix(o.Name, watchPrefix)
	if o.Failed() {
		a.failed.Store(true)
		a.log.Error("watcher failed", logx.String("site", site), logx.Err(o.Err))
	} else {
		a.log.Info("watcher stopped", logx.String("site", site))
	}
	if a.remaining.Add(-1) == 0 {
		close(a.allDone)
	}
}

// WatchersDone is closed once every site's watcher has terminated.
func (a *App) WatchersDone() <-chan struct{} { return a.allDone }

// Failed reports whether at least one watcher terminated fatally.
func (a *App) Failed() bool { return a.failed.Load() }

// Outcomes returns the per-site terminal records collected so far.
func (a *App) Outcomes() []supervisor.Outcome {
	if a.sup == nil {
		return nil
	}
	var out []supervisor.Outcome
	for _, o := range a.sup.Outcomes() {
		if strings.HasPrefix(o.Name, watchPrefix) {
			out = append(out, o)
		}
	}
	return out
}

func (a *App) Stop(ctx context.Context) error {
	if a.stats != nil {
		a.stats.stop()
	}
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	a.notif.Stop(ctx)
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	return err
}

// reloadLoop applies config file changes that are safe at runtime (log
// level/sinks, notification tunables). Site list and storage changes need a
// restart; they are detected and logged, not applied.
func (a *App) reloadLoop(ctx context.Context) error {
	ch := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-ch:
			if !ok {
				return nil
			}
			a.applyReload(cfg)
		}
	}
}

func (a *App) applyReload(cfg *config.Config) {
	a.mu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	a.logs.Apply(mapLogging(cfg))
	a.notif.Apply(mapNotify(cfg))

	if sitesChanged(old, cfg) {
		// Queues are process-lifetime; re-slicing the watcher set live would
		// drop cursors mid-flight.
		a.log.Warn("site list changed; restart to apply")
	}
	if old.Storage != cfg.Storage {
		a.log.Warn("storage config changed; restart to apply")
	}
	a.log.Info("runtime config applied")
}

func sitesChanged(old, cur *config.Config) bool {
	if len(old.Sites) != len(cur.Sites) {
		return true
	}
	for i := range old.Sites {
		if old.Sites[i] != cur.Sites[i] {
			return true
		}
	}
	return false
}

// ---- config mapping ----

func mapLogging(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	out := logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
	// An empty logging section still gets console logs.
	if !out.Console && !out.File.Enabled {
		out.Console = true
	}
	return out
}

func mapNotify(cfg *config.Config) notify.Config {
	nc := cfg.Notify
	desktop := true
	if nc.Desktop != nil {
		desktop = *nc.Desktop
	}
	return notify.Config{
		Enabled:    desktop || nc.Telegram.Enabled,
		QueueSize:  nc.QueueSize,
		RatePerSec: nc.RatePerSec,
	}
}

func buildSinks(cfg *config.Config) ([]notify.Sink, error) {
	var sinks []notify.Sink
	desktop := true
	if cfg.Notify.Desktop != nil {
		desktop = *cfg.Notify.Desktop
	}
	if desktop {
		sinks = append(sinks, notify.NewDesktopSink("chatwatch"))
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramSink(notify.TelegramConfig{
			Token:  cfg.Notify.Telegram.Token,
			ChatID: cfg.Notify.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("notify.telegram: %w", err)
		}
		sinks = append(sinks, tg)
	}
	return sinks, nil
}

func mapTransport(cfg *config.Config) (chat.TransportConfig, error) {
	timeout, err := config.ParseDurationField("api.request_timeout", cfg.API.RequestTimeout)
	if err != nil {
		return chat.TransportConfig{}, err
	}
	return chat.TransportConfig{
		UserAgent: cfg.API.UserAgent,
		Timeout:   timeout,
	}, nil
}

func mapStorage(cfg *config.Config) (storage.Config, time.Duration, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, 0, err
	}
	retention, err := config.ParseDurationField("storage.retention", cfg.Storage.Retention)
	if err != nil {
		return storage.Config{}, 0, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
		Retention:   retention,
	}, retention, nil
}

package app

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"chatwatch/internal/config"
	"chatwatch/pkg/logx"
)

const defaultStatsSchedule = "0 * * * *" // hourly

// statsJob logs a per-site counter summary on a cron schedule and, when
// history retention is set, prunes old rows while it's at it.
type statsJob struct {
	c *cron.Cron
}

func startStats(cfg config.StatsConfig, a *App) (*statsJob, error) {
	spec := strings.TrimSpace(cfg.Schedule)
	if spec == "" {
		spec = defaultStatsSchedule
	}

	// SecondOptional allows both 5-field and 6-field (with seconds) specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(spec, a.logStats); err != nil {
		return nil, err
	}
	c.Start()
	return &statsJob{c: c}, nil
}

func (j *statsJob) stop() {
	if j == nil || j.c == nil {
		return
	}
	<-j.c.Stop().Done()
}

func (a *App) logStats() {
	for _, w := range a.watchers {
		s := w.Stats()
		a.log.Info("site summary",
			logx.String("site", s.Site),
			logx.Uint64("events", s.Events),
			logx.Uint64("messages", s.Messages),
			logx.Uint64("important", s.Important),
			logx.Uint64("heartbeats", s.Heartbeats),
			logx.Uint64("unknown", s.Unknown),
			logx.Uint64("reconnects", s.Reconnects))
	}

	if a.store != nil && a.retention > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		removed, err := a.store.Prune(ctx, time.Now().Add(-a.retention))
		if err != nil {
			a.log.Warn("history prune failed", logx.Err(err))
		} else if removed > 0 {
			a.log.Debug("history pruned", logx.Int64("removed", removed))
		}
	}
}

// Package app assembles the gateway: it builds every component from the
// configuration, runs the update dispatch loop and the background schedules,
// and tears everything down in order.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/access"
	"github.com/JojoKaizeb/GenXuzoProject/internal/bot"
	"github.com/JojoKaizeb/GenXuzoProject/internal/broadcast"
	"github.com/JojoKaizeb/GenXuzoProject/internal/config"
	"github.com/JojoKaizeb/GenXuzoProject/internal/cooldown"
	"github.com/JojoKaizeb/GenXuzoProject/internal/gate"
	"github.com/JojoKaizeb/GenXuzoProject/internal/history"
	"github.com/JojoKaizeb/GenXuzoProject/internal/progress"
	"github.com/JojoKaizeb/GenXuzoProject/internal/remotecfg"
	"github.com/JojoKaizeb/GenXuzoProject/internal/session"
	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
	kit "github.com/JojoKaizeb/GenXuzoProject/internal/transport"
	"github.com/JojoKaizeb/GenXuzoProject/internal/transport/telegram"
)

// updateBuffer absorbs poll bursts between dispatch iterations.
const updateBuffer = 256

type App struct {
	log zerolog.Logger
	cfg *config.Config

	adapter  kit.Adapter
	sessions *session.Orchestrator
	roster   *access.Roster
	remote   *remotecfg.Cache
	audit    store.Store
	bot      *bot.Bot
	cron     *cron.Cron

	updates chan kit.Update
	restart func()
}

// New builds the full component graph. restart is invoked by the operator
// restart command; the process supervisor is expected to bring us back.
func New(cfg *config.Config, dialer session.Dialer, restart func(), log zerolog.Logger) (*App, error) {
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, log)
	if err != nil {
		return nil, err
	}

	roster, err := access.NewRoster(cfg.DataDir, cfg.Owners, log)
	if err != nil {
		return nil, fmt.Errorf("load rosters: %w", err)
	}

	hist, err := history.NewRegistry(filepath.Join(cfg.DataDir, "user_history.json"), log)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	defaults, err := cooldownDefaults(cfg.Cooldown)
	if err != nil {
		return nil, err
	}
	cool, err := cooldown.NewRegistry(filepath.Join(cfg.DataDir, "cooldown.json"), defaults)
	if err != nil {
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}

	ttl, err := config.ParseDurationOrDefault("remote.ttl", cfg.Remote.TTL, remotecfg.DefaultTTL)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := config.ParseDurationOrDefault("remote.fetch_timeout", cfg.Remote.FetchTimeout, remotecfg.DefaultFetchTimeout)
	if err != nil {
		return nil, err
	}
	remote := remotecfg.New(cfg.Remote.BaseURL, ttl, fetchTimeout, log)

	reconnectDelay, err := config.ParseDurationOrDefault("session.reconnect_delay", cfg.Session.ReconnectDelay, session.DefaultReconnectDelay)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewOrchestrator(cfg.DataDir, dialer, roster.IsOwner, reconnectDelay, log)
	if err != nil {
		return nil, fmt.Errorf("load session index: %w", err)
	}

	storagePath := cfg.Storage.Path
	if storagePath == "" {
		storagePath = filepath.Join(cfg.DataDir, "audit")
	}
	audit, err := store.Open(store.Config{Driver: cfg.Storage.Driver, Path: storagePath}, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	local, err := gate.LoadLocalState(filepath.Join(cfg.DataDir, "maintenance.json"))
	if err != nil {
		return nil, fmt.Errorf("load maintenance flag: %w", err)
	}

	minInterval, err := config.ParseDurationOrDefault("progress.min_interval", cfg.Progress.MinInterval, progress.DefaultMinInterval)
	if err != nil {
		return nil, err
	}
	reporter := progress.NewReporter(adapter, minInterval, log)

	batchDelay, err := config.ParseDurationOrDefault("broadcast.batch_delay", cfg.Broadcast.BatchDelay, broadcast.DefaultBatchDelay)
	if err != nil {
		return nil, err
	}
	caster := broadcast.NewEngine(adapter, reporter, cfg.Broadcast.BatchSize, batchDelay, float64(cfg.Broadcast.RatePerSec), log)

	g := gate.New(adapter, hist, remote, roster, local, audit, log)

	a := &App{
		log:      log,
		cfg:      cfg,
		adapter:  adapter,
		sessions: sessions,
		roster:   roster,
		remote:   remote,
		audit:    audit,
		cron:     cron.New(),
		updates:  make(chan kit.Update, updateBuffer),
		restart:  restart,
	}
	a.bot = bot.New(bot.Deps{
		Adapter:  adapter,
		Gate:     g,
		Local:    local,
		Roster:   roster,
		Cooldown: cool,
		History:  hist,
		Sessions: sessions,
		Remote:   remote,
		Caster:   caster,
		Reporter: reporter,

		Channel:      cfg.Channel.Required,
		PendingImage: cfg.Progress.PendingImage,
		DoneImage:    cfg.Progress.DoneImage,
		Restart:      restart,
	}, log)

	a.scheduleJobs(cool, roster)
	return a, nil
}

func cooldownDefaults(c config.Cooldown) (cooldown.Windows, error) {
	var w cooldown.Windows
	parse := func(name, raw string, dst *time.Duration) error {
		if raw == "" {
			return nil
		}
		d, err := cooldown.ParseWindow(raw)
		if err != nil {
			return fmt.Errorf("cooldown.%s: %w", name, err)
		}
		*dst = d
		return nil
	}
	if err := parse("free", c.Free, &w.Free); err != nil {
		return w, err
	}
	if err := parse("premium", c.Premium, &w.Premium); err != nil {
		return w, err
	}
	if err := parse("owner", c.Owner, &w.Owner); err != nil {
		return w, err
	}
	return w, nil
}

func (a *App) scheduleJobs(cool *cooldown.Registry, roster *access.Roster) {
	_, _ = a.cron.AddFunc("@every 30s", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.remote.Refresh(ctx)
	})
	_, _ = a.cron.AddFunc("@daily", func() {
		now := time.Now()
		if n := cool.Evict(now); n > 0 {
			a.log.Info().Int("evicted", n).Msg("cooldown entries evicted")
		}
		if n, err := roster.PruneExpired(now); err != nil {
			a.log.Warn().Err(err).Msg("premium prune failed")
		} else if n > 0 {
			a.log.Info().Int("pruned", n).Msg("expired premium memberships pruned")
		}
	})
}

// Run starts everything and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.sessions.Start(ctx)
	if err := a.roster.Watch(ctx); err != nil {
		a.log.Warn().Err(err).Msg("roster watch unavailable")
	}
	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	a.cron.Start()
	a.sessions.Restore(ctx)
	a.log.Info().Str("version", bot.Version).Msg("gateway started")

	for {
		select {
		case <-ctx.Done():
			return a.shutdown()
		case upd := <-a.updates:
			// Handlers that wait on replies or broadcasts must not
			// stall the loop.
			go a.bot.Dispatch(ctx, upd)
		}
	}
}

func (a *App) shutdown() error {
	a.log.Info().Msg("shutting down")
	stopCron := a.cron.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.adapter.Stop(stopCtx); err != nil {
		a.log.Warn().Err(err).Msg("transport stop failed")
	}
	<-stopCron.Done()

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn().Err(err).Msg("store close failed")
		}
	}
	a.log.Info().Msg("shutdown complete")
	return nil
}

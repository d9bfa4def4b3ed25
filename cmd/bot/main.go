package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"scorebot/internal/api"
	"scorebot/internal/config"
	"scorebot/internal/feed"
	"scorebot/internal/notify"
	"scorebot/internal/poller"
	"scorebot/internal/store"
	"scorebot/internal/tracker"
	"scorebot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	log, err := logx.New(cfg.Logging.ToLogx())
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeoutOrDefault(),
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer st.Close()

	fd := feed.New(feed.Config{
		BaseURL:    cfg.Feed.BaseURL,
		Timeout:    cfg.Feed.TimeoutOrDefault(),
		CacheTTL:   cfg.Feed.CacheTTLOrDefault(),
		RatePerSec: cfg.Feed.RatePerSec,
	}, log.With(logx.String("comp", "feed")))

	var pusher notify.Pusher
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		tp, err := notify.NewTelegramPusher(cfg.Telegram.Token, log.With(logx.String("comp", "telegram")))
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		pusher = tp
	}

	dispatcher := notify.NewDispatcher(notify.Config{RatePerSec: cfg.Notify.RatePerSec},
		st, pusher, log.With(logx.String("comp", "notify")))
	engine := tracker.NewEngine(st, fd, dispatcher, log.With(logx.String("comp", "tracker")))

	pol := poller.New(poller.Config{Schedule: cfg.Poller.ScheduleOrDefault()},
		func(ctx context.Context) {
			if _, err := engine.Run(ctx); err != nil {
				log.Error("poll cycle failed", logx.Err(err))
			}
		}, log.With(logx.String("comp", "poller")))
	if cfg.Poller.Enabled {
		if err := pol.Start(ctx); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		defer pol.Stop()
	}

	// Hot reload: re-apply the poller schedule when the config file changes.
	go func() { _ = mgr.Watch(ctx) }()
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)
	go func() {
		for next := range updates {
			switch {
			case next.Poller.Enabled && !pol.Running():
				if err := pol.Start(ctx); err != nil {
					log.Warn("poller start failed on reload", logx.Err(err))
				}
			case !next.Poller.Enabled && pol.Running():
				pol.Stop()
			}
			if err := pol.Apply(next.Poller.ScheduleOrDefault()); err != nil {
				log.Warn("poller schedule rejected on reload", logx.Err(err))
			}
		}
	}()

	addr := strings.TrimSpace(cfg.Server.Addr)
	if addr == "" {
		addr = ":8080"
	}
	srv := api.NewServer(addr, st, fd, engine, dispatcher, log.With(logx.String("comp", "api")))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if err := srv.Start(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

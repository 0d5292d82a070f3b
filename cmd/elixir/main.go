package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vigarepo2/elixir/pkg/bot"
	"github.com/vigarepo2/elixir/pkg/bus"
	"github.com/vigarepo2/elixir/pkg/composer"
	"github.com/vigarepo2/elixir/pkg/config"
	"github.com/vigarepo2/elixir/pkg/extract"
	"github.com/vigarepo2/elixir/pkg/logger"
	"github.com/vigarepo2/elixir/pkg/server"
	"github.com/vigarepo2/elixir/pkg/session"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("elixir v%s\n", version)
		return
	}

	if *debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Telegram.Token == "" {
		fmt.Println("Error: telegram token is not configured (ELIXIR_TELEGRAM_TOKEN)")
		os.Exit(1)
	}

	if cfg.Logging.Enabled {
		if err := logger.EnableFileLogging(cfg.LogFilePath(), cfg.Logging.MaxSizeMB, cfg.Logging.RetentionDays); err != nil {
			fmt.Printf("Warning: file logging disabled: %v\n", err)
		}
	}

	if err := run(cfg); err != nil {
		logger.ErrorCF("main", "Gateway stopped with error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor, err := extract.NewExtractor(cfg.Extract.MediaOrder)
	if err != nil {
		return fmt.Errorf("invalid extract config: %w", err)
	}

	store := session.NewManager(cfg.SessionTTL())
	cache := extract.NewCache(cfg.CacheTTL())
	updateBus := bus.NewUpdateBus()

	tg, err := bot.NewTelegram(cfg.Telegram.Token)
	if err != nil {
		return err
	}

	comp := composer.New(tg, extractor, cache)
	dispatcher := bot.NewDispatcher(updateBus, store, comp, tg, cfg.Telegram.AllowFrom, cfg.Extract.NotifyUnknownAction)
	srv := server.NewServer(cfg, updateBus)

	// Sweeps stay explicit methods; the scheduler only decides when.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Session.SweepSpec, func() {
		now := time.Now()
		sessions := store.Sweep(now)
		exports := cache.Sweep(now)
		if sessions > 0 || exports > 0 {
			logger.InfoCF("main", "TTL sweep completed", map[string]interface{}{
				"sessions_removed": sessions,
				"exports_removed":  exports,
			})
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep spec %q: %w", cfg.Session.SweepSpec, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	defer updateBus.Close()

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return err
		}
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	g.Go(func() error {
		if cfg.Telegram.Webhook {
			// Updates arrive through POST /webhook; nothing to poll.
			logger.InfoC("main", "Webhook mode: waiting for platform calls")
			<-runCtx.Done()
			return nil
		}
		if err := tg.StartPolling(runCtx, updateBus); err != nil {
			return err
		}
		<-runCtx.Done()
		tg.Stop()
		return nil
	})

	logger.InfoCF("main", "Elixir gateway started", map[string]interface{}{
		"addr":    fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		"webhook": cfg.Telegram.Webhook,
	})

	return g.Wait()
}

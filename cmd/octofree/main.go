package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dalbodeule/octofree/internal/config"
	"github.com/dalbodeule/octofree/internal/ical"
	appLog "github.com/dalbodeule/octofree/internal/log"
	"github.com/dalbodeule/octofree/internal/monitor"
	"github.com/dalbodeule/octofree/internal/notify"
	"github.com/dalbodeule/octofree/internal/parse"
	"github.com/dalbodeule/octofree/internal/scrape"
	"github.com/dalbodeule/octofree/internal/track"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "octofree",
		Short:         "Monitor Octopus Energy free electricity sessions",
		Long:          "octofree polls the Octopus Energy free-electricity page, exports announced sessions as an iCalendar file and sends milestone notifications.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")

	root.AddCommand(runCmd(), onceCmd())

	if err := root.Execute(); err != nil {
		appLog.Error("fatal", err)
		os.Exit(1)
	}
}

// runCmd runs the monitor continuously on its two timers.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run continuously with scrape and notify-check timers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, m, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			scrapeEvery := time.Duration(cfg.Scraper.CheckIntervalMinutes) * time.Minute
			notifyEvery := time.Duration(cfg.Notifications.CheckIntervalMinutes) * time.Minute
			return m.Run(ctx, scrapeEvery, notifyEvery)
		},
	}
}

// onceCmd runs exactly one scrape cycle and exits, for external
// schedulers (cron, CI).
func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single scrape cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			appLog.Info("running in single-run mode")
			m.RunScrapeCycle(ctx)
			appLog.Info("single run completed")
			return nil
		},
	}
}

// setup loads configuration and wires all components. Configuration
// problems are the only fatal failure class; everything past this point
// degrades and logs instead of aborting.
func setup() (*config.Config, *monitor.Monitor, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	appLog.SetLevel(appLog.ParseLevel(cfg.Logging.Level))
	appLog.Info("octofree starting",
		"config", configPath,
		"url", cfg.Scraper.URL,
		"scrape_interval_minutes", cfg.Scraper.CheckIntervalMinutes,
		"notify_interval_minutes", cfg.Notifications.CheckIntervalMinutes,
		"notifications_enabled", cfg.Notifications.Enabled,
	)

	fetcher := scrape.NewFetcher(
		cfg.Scraper.URL,
		time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second,
		cfg.Scraper.RenderJS,
	)
	resolver := parse.NewResolver(cfg.Location())
	tracker := track.NewTracker(cfg.StatePath())
	calendar := ical.NewGenerator(cfg.ICal.Timezone, cfg.ICal.Alarms.Enabled, cfg.ICal.Alarms.Times)

	notifier := notify.NewNotifier(notify.Options{
		Enabled:       cfg.Notifications.Enabled,
		UpcomingHours: cfg.Notifications.UpcomingHours,
		NotifyStart:   cfg.Notifications.NotifyStart,
		NotifyEnd:     cfg.Notifications.NotifyEnd,
	}, buildSenders(cfg)...)

	m := monitor.NewMonitor(monitor.Params{
		Source:         fetcher,
		Resolver:       resolver,
		Tracker:        tracker,
		Calendar:       calendar,
		Notifier:       notifier,
		ICalPath:       cfg.ICalPath(),
		CleanupEnabled: cfg.ICal.Cleanup.Enabled,
		DaysToKeep:     cfg.ICal.Cleanup.DaysToKeep,
	})

	return cfg, m, nil
}

// buildSenders assembles the notification backends named in config. A
// malformed backend URL is logged and skipped; it never blocks startup.
func buildSenders(cfg *config.Config) []notify.Sender {
	var senders []notify.Sender

	if url := cfg.Notifications.DiscordWebhookURL; url != "" {
		d, err := notify.NewDiscordSender(url)
		if err != nil {
			appLog.Error("discord sender disabled", err)
		} else {
			senders = append(senders, d)
		}
	}

	for _, url := range cfg.Notifications.WebhookURLs {
		if url == "" {
			continue
		}
		senders = append(senders, notify.NewWebhookSender(url))
	}

	return senders
}

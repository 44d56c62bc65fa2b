package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/paketku/paketku/internal/api"
	"github.com/paketku/paketku/internal/catalog"
	"github.com/paketku/paketku/internal/client"
	"github.com/paketku/paketku/internal/config"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/metrics"
	"github.com/paketku/paketku/internal/session"
	"github.com/paketku/paketku/internal/store"
	"github.com/paketku/paketku/internal/telegram"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the Paketku bot",
	Long: `Start the Telegram bot, the session cache, and the admin HTTP server.

Example:
  paketku serve --config config.yaml --db ./data/paketku.db`,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Admin server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Admin server port (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting Paketku...")
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if globalFlags.DBPath != "" {
		cfg.Database.Path = globalFlags.DBPath
	}

	logger := logging.NewLogger(
		logging.WithLevel(logging.LogLevel(cfg.Server.LogLevel)),
		logging.WithService("paketku"),
	)

	sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if cerr := sqliteStore.Close(); cerr != nil {
			logger.Error("store close failed", "error", cerr.Error())
		}
	}()

	m := metrics.NewMetrics("paketku")
	if n, cerr := sqliteStore.CountAccounts(); cerr == nil {
		m.SetLinkedAccounts(n)
	}

	httpClient := client.NewRotatingClient(cfg.API.FingerprintTLS, cfg.API.Timeout)
	clientOpts := client.Options{
		BaseURL:     cfg.API.BaseURL,
		AuthBaseURL: cfg.API.AuthBaseURL,
		APIKey:      cfg.API.APIKey,
		OTPChannel:  cfg.API.OTPChannel,
		HTTPClient:  httpClient,
		Logger:      logger,
		Metrics:     m,
	}
	ciam := client.NewCiamClient(clientOpts)
	subscriber := client.NewSubscriberClient(clientOpts)
	purchase := client.NewPurchaseClient(clientOpts)

	sessions := session.NewManager(
		sqliteStore,
		ciam,
		cfg.API.APIKey,
		cfg.Session.FreshnessWindow,
		session.WithLogger(logger),
		session.WithMetrics(m),
	)

	hot, err := catalog.New(cfg.Catalog.HotPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load hot catalog: %w", err)
	}
	hot2, err := catalog.New(cfg.Catalog.Hot2Path, logger)
	if err != nil {
		return fmt.Errorf("failed to load hot2 catalog: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Catalog.Watch {
		for _, c := range []*catalog.Catalog{hot, hot2} {
			c := c
			go func() {
				if werr := c.Watch(ctx); werr != nil && ctx.Err() == nil {
					logger.Warn("catalog watcher stopped", "error", werr.Error())
				}
			}()
		}
	}

	botOpts := &telegram.BotOptions{
		Logger:  logger,
		Metrics: m,
	}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		tgClient, terr := telegram.NewTGBotAPIClient(cfg.Telegram.BotToken, cfg.Telegram.PollTimeout)
		if terr != nil {
			return fmt.Errorf("failed to connect to telegram: %w", terr)
		}
		botOpts.BotAPI = tgClient
	}

	bot := telegram.NewBot(cfg.Telegram, cfg.Dialog, telegram.Deps{
		Store:      sqliteStore,
		Sessions:   sessions,
		Auth:       ciam,
		Subscriber: subscriber,
		Purchase:   purchase,
		Hot:        hot,
		Hot2:       hot2,
	}, botOpts)

	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	var serverErr <-chan error
	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server, m, logger, hot, hot2, Version)
		serverErr = server.Start()
		logger.Info("admin server listening", "addr", server.Addr())
	}

	logger.Info("paketku started",
		"telegram_enabled", cfg.Telegram.Enabled,
		"catalog_watch", cfg.Catalog.Watch,
		"session_window", cfg.Session.FreshnessWindow.String())

	sigCh := api.SetupSignalHandler()
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-orNever(serverErr):
		logger.Error("admin server failed", "error", err.Error())
	}

	cancel()
	if server != nil {
		if serr := server.Shutdown(); serr != nil {
			logger.Error("server shutdown failed", "error", serr.Error())
		}
	}
	if berr := bot.Stop(); berr != nil {
		logger.Error("bot shutdown failed", "error", berr.Error())
	}

	// Give in-flight handlers a moment to log before the store closes.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// orNever makes a nil error channel safe to select on.
func orNever(ch <-chan error) <-chan error {
	if ch != nil {
		return ch
	}
	return make(chan error)
}

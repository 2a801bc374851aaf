package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/megabytemb/messenger-link/app"
	"github.com/megabytemb/messenger-link/graph"
	"github.com/megabytemb/messenger-link/log"
	"github.com/megabytemb/messenger-link/notify"
	"github.com/megabytemb/messenger-link/store"
	"github.com/megabytemb/messenger-link/webhooks"
)

type Config struct {
	LogLevel string
	Address  string
	CertPath string
	KeyPath  string

	ClientID     string
	ClientSecret string
	CallbackURL  string
	RedirectURL  string

	DBPath          string
	StrictHooks     bool
	RefreshInterval time.Duration
}

func main() {

	cfg := &Config{}

	cmd := &cli.App{
		Name:  "messenger-link",
		Usage: "Facebook Messenger page webhook bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log_level",
				EnvVars:     []string{"LOG_LEVEL"},
				Value:       "debug",
				Usage:       "Log Level",
				Destination: &cfg.LogLevel,
			},
			&cli.StringFlag{
				Name:        "address",
				EnvVars:     []string{"ADDRESS"},
				Value:       ":8080",
				Usage:       "Local webhook bind address",
				Destination: &cfg.Address,
			},
			&cli.StringFlag{
				Name:        "cert_path",
				EnvVars:     []string{"CERT_PATH"},
				Usage:       "SSL certificate",
				Destination: &cfg.CertPath,
			},
			&cli.StringFlag{
				Name:        "key_path",
				EnvVars:     []string{"KEY_PATH"},
				Usage:       "SSL key",
				Destination: &cfg.KeyPath,
			},
			&cli.StringFlag{
				Name:        "client_id",
				EnvVars:     []string{"FB_CLIENT_ID"},
				Required:    true,
				Usage:       "Facebook App ID",
				Destination: &cfg.ClientID,
			},
			&cli.StringFlag{
				Name:        "client_secret",
				EnvVars:     []string{"FB_CLIENT_SECRET"},
				Required:    true,
				Usage:       "Facebook App secret",
				Destination: &cfg.ClientSecret,
			},
			&cli.StringFlag{
				Name:        "callback_url",
				EnvVars:     []string{"CALLBACK_URL"},
				Required:    true,
				Usage:       "Externally reachable webhook URL registered with the Graph API",
				Destination: &cfg.CallbackURL,
			},
			&cli.StringFlag{
				Name:        "redirect_url",
				EnvVars:     []string{"REDIRECT_URL"},
				Usage:       "OAuth2 authorization code redirect URL",
				Destination: &cfg.RedirectURL,
			},
			&cli.StringFlag{
				Name:        "db_path",
				EnvVars:     []string{"DB_PATH"},
				Value:       "messenger-link.db",
				Usage:       "SQLite database file",
				Destination: &cfg.DBPath,
			},
			&cli.BoolFlag{
				Name:        "strict_signatures",
				EnvVars:     []string{"STRICT_SIGNATURES"},
				Usage:       "Reject deliveries with a missing or invalid X-Hub-Signature-256",
				Destination: &cfg.StrictHooks,
			},
			&cli.DurationFlag{
				Name:        "refresh_interval",
				EnvVars:     []string{"REFRESH_INTERVAL"},
				Value:       app.DefaultRefreshInterval,
				Usage:       "Page profile refresh interval",
				Destination: &cfg.RefreshInterval,
			},
		},
		Action: func(_ *cli.Context) error {
			return run(cfg)
		},
	}

	if err := cmd.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(cfg *Config) error {

	logger, err := log.Console(cfg.LogLevel, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	db, err := store.OpenSQLite(ctx, cfg.DBPath, "app_config")
	if err != nil {
		logger.Err(err).Str("path", cfg.DBPath).Msg("STORE: OPEN")
		return err
	}
	defer db.Close()

	client := graph.New(
		app.OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, ""),
		graph.WithLogger(*logger),
	)

	registry := webhooks.NewRegistry()
	mgr := app.NewManager(
		client, registry, db,
		&notify.LogNotifier{Log: *logger},
		cfg.CallbackURL, *logger,
	)
	mgr.RefreshInterval = cfg.RefreshInterval

	hook := webhooks.NewDispatcher(registry, *logger)
	hook.StrictSignatures = cfg.StrictHooks

	srv := NewServer(mgr, hook, *logger)
	httpsrv := &http.Server{
		Addr:    cfg.Address,
		Handler: srv.Router(),
	}

	go mgr.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpsrv.Shutdown(shutdown)
	}()

	logger.Info().
		Str("address", cfg.Address).
		Str("callback", cfg.CallbackURL).
		Msg("SERVER: LISTEN")

	if cfg.CertPath != "" && cfg.KeyPath != "" {
		err = httpsrv.ListenAndServeTLS(cfg.CertPath, cfg.KeyPath)
	} else {
		err = httpsrv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		logger.Err(err).Msg("SERVER: LISTEN")
		return err
	}

	// Let in-flight webhook entry hand-offs finish.
	hook.Wait()
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkrause/beacon/internal/config"
	"github.com/mkrause/beacon/internal/connector"
	"github.com/mkrause/beacon/internal/httpapi"
	"github.com/mkrause/beacon/internal/notify"
	"github.com/mkrause/beacon/internal/store"
	"github.com/mkrause/beacon/internal/tracker"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification relay",
		Long:  "Starts the webhook and operator API server and handles installation events as they arrive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	st, err := store.New(store.Opts{Path: cfg.RecipientsFile, Log: log})
	if err != nil {
		return err
	}

	sender, err := buildSender(cfg)
	if err != nil {
		return err
	}

	trk, err := tracker.New(tracker.Opts{
		Store:  st,
		Sender: sender,
		BotID:  cfg.AppID,
		Log:    log,
	})
	if err != nil {
		return err
	}

	dispatcher, err := notify.NewDispatcher(notify.DispatcherOpts{
		Sender:  sender,
		Log:     log,
		Workers: cfg.Dispatch.Workers,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	log.Info().
		Str("bot_id", cfg.AppID).
		Str("recipients_file", cfg.RecipientsFile).
		Msg("starting Beacon")

	return httpapi.Start(ctx, httpapi.Opts{
		Store:      st,
		Tracker:    trk,
		Dispatcher: dispatcher,
		Validator:  connector.TokenValidator{AppID: cfg.AppID, Disabled: cfg.Auth.Disabled},
		BotID:      cfg.AppID,
		Port:       cfg.Port,
		Log:        log,
	})
}

// buildSender creates the connector client, prompting for the app password
// on a terminal when it was not provided via config or environment.
func buildSender(cfg *config.Config) (connector.Sender, error) {
	password := cfg.AppPassword
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "App password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read app password: %w", err)
		}
		password = string(raw)
	}
	return connector.NewClient(connector.ClientOpts{
		AppID:       cfg.AppID,
		AppPassword: password,
		TokenURL:    cfg.Connector.TokenURL,
		Scope:       cfg.Connector.Scope,
	})
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

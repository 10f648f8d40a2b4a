package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-socket-relay/internal/client"
	"github.com/omochice/toy-socket-relay/internal/config"
	"github.com/omochice/toy-socket-relay/internal/display"
	"github.com/omochice/toy-socket-relay/internal/endpoint"
	"github.com/omochice/toy-socket-relay/internal/logging"
	"github.com/omochice/toy-socket-relay/internal/relay"
	"github.com/omochice/toy-socket-relay/internal/transport"
	"github.com/omochice/toy-socket-relay/internal/transport/gobwas"
	"github.com/omochice/toy-socket-relay/internal/transport/gorilla"
	"github.com/omochice/toy-socket-relay/internal/ui"
)

var (
	configPath string
	page       string
	transportN string
	strictUTF8 bool
	plain      bool
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "relay-client",
	Short: "Relay messages over a WebSocket connection",
	Long: `relay-client opens one WebSocket connection to /ws on the page host,
renders every inbound frame into a timestamped log, and sends each
submitted line verbatim.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.Flags().StringVarP(&page, "page", "p", "", "Page address the endpoint is derived from (e.g. https://example.com)")
	rootCmd.Flags().StringVar(&transportN, "transport", "", "WebSocket implementation: gorilla or gobwas")
	rootCmd.Flags().BoolVar(&strictUTF8, "strict-utf8", false, "Render an error for binary frames that are not valid UTF-8")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "Line mode instead of the full-screen UI")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("page") {
		cfg.Client.Page = page
	}
	if flags.Changed("transport") {
		cfg.Client.Transport = transportN
	}
	if flags.Changed("strict-utf8") {
		cfg.Client.StrictUTF8 = strictUTF8
	}
	if flags.Changed("plain") {
		cfg.Client.Plain = plain
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}
	return cfg, nil
}

func newDialer(cfg config.ClientConfig) transport.Dialer {
	if cfg.Transport == config.TransportGobwas {
		return &gobwas.Dialer{Timeout: cfg.DialTimeout}
	}
	return &gorilla.Dialer{HandshakeTimeout: cfg.DialTimeout}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, !cfg.Client.Plain)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	target, err := endpoint.FromPage(cfg.Client.Page)
	if err != nil {
		return err
	}

	session := client.New(newDialer(cfg.Client), target.String(), logger.Named("session"))
	defer session.Shutdown()

	log := display.NewLog()
	ctrl := relay.NewController(session, log, relay.Options{StrictUTF8: cfg.Client.StrictUTF8}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting relay client",
		zap.String("endpoint", target.String()),
		zap.String("transport", cfg.Client.Transport),
		zap.Bool("plain", cfg.Client.Plain))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)

	g.Go(func() error {
		return ctrl.Run(runCtx)
	})

	g.Go(func() error {
		defer cancel()
		if cfg.Client.Plain {
			return ui.RunPlain(runCtx, ctrl, log, os.Stdin, os.Stdout)
		}
		program := tea.NewProgram(ui.New(runCtx, ctrl, log, target.String()), tea.WithAltScreen(), tea.WithContext(runCtx))
		if _, err := program.Run(); err != nil && runCtx.Err() == nil {
			return fmt.Errorf("failed to run terminal ui: %w", err)
		}
		return nil
	})

	return g.Wait()
}

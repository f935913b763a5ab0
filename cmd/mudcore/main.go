// Package main is the entry point for the mudcore client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/mudcore/internal/app"
	"github.com/dshills/mudcore/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	ConfigPath string
	Connect    string
	UI         string
	LogLevel   string
	LogFile    string
	Paths      []string
	AutoReload bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mudcore [host:port]",
		Short: "mudcore - a scriptable MUD client",
		Long: `mudcore is a MUD client built around an event queue, hooks,
commands and Lua extensions.

Example:
  mudcore
  mudcore mud.example.org:4000
  mudcore --ui tcell --log-file ~/.local/state/mudcore.log`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cmd.Flags().Set("connect", args[0]); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "path to configuration file (default "+config.DefaultPath()+")")
	f.StringVar(&opts.Connect, "connect", "", "host:port to connect to at startup")
	f.StringVar(&opts.UI, "ui", "", "user interface (text|tcell)")
	f.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	f.StringVar(&opts.LogFile, "log-file", "", "write logs to this file")
	f.StringSliceVarP(&opts.Paths, "extensions", "e", nil, "extension search paths")
	f.BoolVar(&opts.AutoReload, "auto-reload", false, "reload extensions when their files change")

	cmd.AddCommand(newConfigCommand(opts))
	return cmd
}

// newConfigCommand prints the effective configuration.
func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// loadConfig reads the configuration file and environment, then applies
// the flags the user set.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("connect") {
		cfg.Session.Connect = opts.Connect
	}
	if flags.Changed("ui") {
		cfg.UI.Kind = opts.UI
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.LogLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = opts.LogFile
	}
	if flags.Changed("extensions") {
		cfg.Extensions.Paths = opts.Paths
	}
	if flags.Changed("auto-reload") {
		cfg.Extensions.AutoReload = opts.AutoReload
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(app.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

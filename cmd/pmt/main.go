package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/awnumar/memguard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/config"
	"github.com/tgienger/pmt/internal/db"
	"github.com/tgienger/pmt/internal/logging"
	"github.com/tgienger/pmt/internal/policy"
	"github.com/tgienger/pmt/internal/session"
	"github.com/tgienger/pmt/internal/ui"
	"github.com/tgienger/pmt/internal/ui/views"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Purge the sealed token if we are interrupted outside the TUI
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		memguard.SafeExit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "pmt",
		Short:         "Team project management in the terminal",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.Path()+")")

	cmd.AddCommand(versionCmd())
	cmd.AddCommand(logoutCmd(&configPath))
	cmd.AddCommand(configCmd(&configPath))
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pmt %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func logoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := db.New(cfg.Storage.Driver, cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			sess := session.New(store, logging.Discard())
			if err := sess.Restore(); err != nil {
				return err
			}
			if !sess.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			name := sess.Identity().Name
			if err := sess.Logout(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", name)
			return nil
		},
	}
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = config.Path()
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func run(ctx context.Context, configPath string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("pmt needs an interactive terminal")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logFile, err := logging.Open(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	// Initialize database
	store, err := db.New(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()

	sess := session.New(store, logger)
	if err := sess.Restore(); err != nil {
		return err
	}

	client := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Logger:    logger,
	}, sess)

	deps := &views.Deps{
		Ctx:      ctx,
		API:      client,
		Session:  sess,
		Policy:   policy.Policy{DevelopersActForOthers: cfg.Policy.DevelopersActForOthers},
		Settings: store,
		Log:      logger,
	}

	logger.Info("starting", "version", version, "api", cfg.API.BaseURL)

	// Create and run the application
	p := tea.NewProgram(ui.NewApp(deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}

// Package cli implements the farmrent command line: one window per invocation
// over the configured store and channel.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"farmrent/internal/app"
	"farmrent/internal/config"
	"farmrent/internal/logging"
	"farmrent/internal/models"
	"farmrent/internal/session"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	As         string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "farmrent",
		Short: "Farm machinery rental bookings",
		Long: `Book farm machinery between farmers and providers.

Every invocation opens one window on the configured store. With Redis enabled,
windows of the same origin see each other's changes as they happen.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfig, "path to config file")
	cmd.PersistentFlags().StringVar(&opts.As, "as", os.Getenv("FARMRENT_USER"), "email of the acting user")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewQuoteCommand(opts))
	cmd.AddCommand(NewRequestCommand(opts))
	cmd.AddCommand(NewTransitionCommands(opts)...)
	cmd.AddCommand(NewDisputeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewAgreementCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	f := &OutputFormatter{Format: format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
	if format != "json" {
		f.Writer = cmd.ErrOrStderr()
	}
	_ = f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openApp loads the config and opens the store. Logs go to stderr so that
// stdout carries only command output.
func (o *RootOptions) openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if !strings.EqualFold(cfg.Logging.Output, "file") {
		cfg.Logging.Output = "stderr"
	}
	if !o.Verbose {
		cfg.Logging.Level = "warn"
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App, cfg.Sync.Origin)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "init logger", err)
	}

	a, err := app.New(ctx, cfg, logging.Component(logger, "cli"))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, WrapExitError(ExitCommandError, "open store", err)
	}

	cleanup := func() {
		_ = a.Close()
		if closer != nil {
			_ = closer.Close()
		}
	}
	return a, cleanup, nil
}

// withWindow runs fn inside a freshly opened window.
func (o *RootOptions) withWindow(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, w *session.Window) error) error {
	ctx := cmd.Context()
	a, cleanup, err := o.openApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	w := a.OpenWindow("")
	defer w.Close()
	return fn(ctx, a, w)
}

// actor resolves --as against the stored profiles.
func (o *RootOptions) actor(ctx context.Context, a *app.App) (models.Identity, error) {
	email := strings.TrimSpace(o.As)
	if email == "" {
		return models.Identity{}, NewExitError(ExitCommandError, "--as is required for this command")
	}
	id, err := a.Identity(ctx, email)
	if err != nil {
		return models.Identity{}, fmt.Errorf("unknown user %s (seed profiles first): %w", email, err)
	}
	return id, nil
}

func errorCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return "command"
	}
	return domainCode(err)
}

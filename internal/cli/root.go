// Package cli is the gofilter command line. It drives the same core service
// as the HTTP server against the configured record store and cache.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jo-hoe/gofilter/internal/core"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

const configEnv = "CONFIG_PATH"

// Exit codes returned by Run.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitRuntimeError = 4
)

type options struct {
	configPath string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "gofilter",
		Short:         "Photo filter gallery",
		Long:          "gofilter stores photos, previews every catalog filter as a thumbnail grid and applies the chosen one.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to config.yaml (defaults to $"+configEnv+" or ./config.yaml)")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newServeCommand(opts),
		newAddCommand(opts),
		newListCommand(opts),
		newDeleteCommand(opts),
		newFiltersCommand(opts),
		newThumbsCommand(opts),
		newApplyCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Run executes the command line and returns a process exit code.
func Run(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		var usage usageError
		if errors.As(err, &usage) {
			return ExitUsageError
		}
		return ExitRuntimeError
	}
	return ExitSuccess
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// resolveConfigPath prefers the flag, then the environment, then the
// working directory. explicit reports whether the user named a path.
func (o *options) resolveConfigPath() (path string, explicit bool) {
	if o.configPath != "" {
		return o.configPath, true
	}
	if p := os.Getenv(configEnv); p != "" {
		return p, true
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "config.yaml", false
	}
	return filepath.Join(cwd, "config.yaml"), false
}

// loadConfig reads the config file. A missing implicit file falls back to
// the defaults; a missing explicit one is an error.
func (o *options) loadConfig() (*core.ServiceConfig, error) {
	path, explicit := o.resolveConfigPath()
	config, err := core.LoadConfig(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no config file, using defaults", "path", path)
			config = core.DefaultConfig()
		} else {
			return nil, err
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.SlogLevel()})))
	return config, nil
}

func (o *options) withCore(cmd *cobra.Command, fn func(ctx context.Context, svc *core.CoreService) error) error {
	config, err := o.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, err := core.NewCoreService(ctx, config)
	if err != nil {
		return err
	}
	runErr := fn(ctx, svc)
	if err := svc.Close(); err != nil {
		slog.Error("core service close error", "error", err)
	}
	return runErr
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print gofilter version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gofilter version %s\n", version)
		},
	}
}

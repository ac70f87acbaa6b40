package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/jo-hoe/gofilter/internal/capture"
	"github.com/jo-hoe/gofilter/internal/core"
	"github.com/jo-hoe/gofilter/internal/server"
	"github.com/spf13/cobra"
)

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return 0, usageError{fmt.Errorf("filter index %q is not an integer", arg)}
	}
	return index, nil
}

func newServeCommand(opts *options) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				config.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx, config)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override the configured port")
	return cmd
}

func newAddCommand(opts *options) *cobra.Command {
	var caption string
	cmd := &cobra.Command{
		Use:   "add <image-file>",
		Short: "Add a photo to the feed",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := capture.FromFile(args[0])
			if err != nil {
				return err
			}
			return opts.withCore(cmd, func(ctx context.Context, svc *core.CoreService) error {
				record, err := svc.AddPhoto(ctx, result, caption)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), record.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "caption stored with the photo")
	return cmd
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List photos in feed order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCore(cmd, func(ctx context.Context, svc *core.CoreService) error {
				records, err := svc.ListPhotos(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Caption)
				}
				return w.Flush()
			})
		},
	}
}

func newDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <photo-id>",
		Short: "Delete a photo and its cached thumbnails",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCore(cmd, func(ctx context.Context, svc *core.CoreService) error {
				return svc.DeletePhoto(ctx, args[0])
			})
		},
	}
}

func newFiltersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the filter catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCore(cmd, func(ctx context.Context, svc *core.CoreService) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for i, def := range svc.Filters() {
					params := make([]string, 0, len(def.Params))
					for _, p := range def.Params {
						params = append(params, fmt.Sprintf("%s=%g", p.Name, p.Value))
					}
					sort.Strings(params)
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, def.Name, def.Kind, strings.Join(params, " "))
				}
				return w.Flush()
			})
		},
	}
}

// newThumbsCommand renders the whole filter grid of a photo through the
// background scheduler and writes every ready cell to disk.
func newThumbsCommand(opts *options) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "thumbs <photo-id>",
		Short: "Write one thumbnail per filter",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			return opts.withCore(cmd, func(ctx context.Context, svc *core.CoreService) error {
				session, err := svc.OpenFilterSession(ctx, args[0])
				if err != nil {
					return err
				}
				cells, err := session.Wait(ctx)
				if err != nil {
					return err
				}
				defs := svc.Filters()
				for _, cell := range cells {
					name := defs[cell.Index].Name
					if cell.Err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%d %s: %v\n", cell.Index, name, cell.Err)
						continue
					}
					path := filepath.Join(outDir, fmt.Sprintf("%02d-%s.jpg", cell.Index, name))
					if err := os.WriteFile(path, cell.Image, 0o644); err != nil {
						return fmt.Errorf("writing %s: %w", path, err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory the thumbnails are written to")
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "apply <photo-id> <filter-index>",
		Short: "Apply a filter to a photo and save it",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return opts.withCore(cmd, func(ctx context.Context, svc *core.CoreService) error {
				record, err := svc.CommitFilter(ctx, args[0], index)
				if err != nil {
					return err
				}
				if outPath != "" {
					if err := os.WriteFile(outPath, record.Image, 0o644); err != nil {
						return fmt.Errorf("writing %s: %w", outPath, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s to %s\n", svc.Filters()[index].Name, record.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "also write the filtered image to this file")
	return cmd
}

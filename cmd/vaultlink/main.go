package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/vaultlink/internal/app"
	"github.com/dharsanguruparan/vaultlink/internal/config"
	"github.com/dharsanguruparan/vaultlink/internal/database"
	"github.com/dharsanguruparan/vaultlink/internal/logger"
	"github.com/dharsanguruparan/vaultlink/internal/metadata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(openCore)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vaultlink: %v\n", err)
		os.Exit(1)
	}
}

// coreOpener builds the shared components from configuration. Tests swap it
// for an in-memory core.
type coreOpener func(ctx context.Context) (*app.Core, func(), error)

func openCore(ctx context.Context) (*app.Core, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.Component("cli")
	store, err := app.OpenStore(ctx, cfg, false)
	if err != nil {
		return nil, nil, err
	}
	core, err := app.Build(ctx, cfg, store, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return core, store.Close, nil
}

func newRootCommand(open coreOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultlink",
		Short: "vaultlink operator CLI",
		Long: `vaultlink CLI covers operator tasks: applying database migrations, previewing
metadata extraction, searching the catalog, inspecting links, replaying
archived batches, and launching the binaries directly.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newExtractCmd(),
		newSearchCmd(open),
		newLinkCmd(open),
		newReplayCmd(open),
		newRunCmd(),
	)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate needs VAULTLINK_STORE=postgres")
			}
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			version, err := database.Version(ctx, pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var caption string
	cmd := &cobra.Command{
		Use:   "extract <file name>",
		Short: "Show the metadata and keywords derived from a file name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, keywords := metadata.Extract(args[0], caption)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"metadata": md,
				"keywords": keywords,
			})
		},
	}
	cmd.Flags().StringVarP(&caption, "caption", "c", "", "Caption posted with the file")
	return cmd
}

func newSearchCmd(open coreOpener) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := core.Search.Search(cmd.Context(), args[0], page, size)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().IntVar(&size, "size", 10, "Results per page")
	return cmd
}

func newLinkCmd(open coreOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id>",
		Short: "Show a link and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			link, err := core.Links.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), link)
		},
	}
}

func newReplayCmd(open coreOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <link id>",
		Short: "Run an archived batch through the ingestion pipeline again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			core, closeFn, err := open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			if core.Archive == nil {
				return errors.New("replay needs VAULTLINK_S3_ENDPOINT")
			}
			batch, err := core.Archive.GetBatch(ctx, args[0])
			if err != nil {
				return err
			}
			link, err := core.Pipeline.Process(ctx, batch.Events)
			if link == nil {
				if err == nil {
					err = errors.New("archived batch holds no files")
				}
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "partial replay: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events into link %s\n", len(batch.Events), link.ID)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			execCmd := exec.CommandContext(cmd.Context(), "go", goArgs...)
			execCmd.Stdout = os.Stdout
			execCmd.Stderr = os.Stderr
			execCmd.Stdin = os.Stdin
			return execCmd.Run()
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

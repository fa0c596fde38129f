package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/querylens/querylens/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port    int
	Watch   string
	Workers int
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local lineage API server",
		Long: `Start a local HTTP server exposing the lineage builder.

The API accepts query history, builds lineage graphs synchronously or
through a worker pool, and manages saved snapshots. With --watch, a JSON
history export is rebuilt automatically whenever the file changes.`,
		Example: `  # Start on the default port
  querylens serve

  # Start on a custom port with more workers
  querylens serve --port 9000 --workers 8

  # Rebuild whenever the desktop client rewrites its export
  querylens serve --watch ./history.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 4378)")
	cmd.Flags().StringVar(&opts.Watch, "watch", "", "JSON history file to watch and rebuild from")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Build worker count (default: 4)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	// Get serve config with defaults
	serveCfg := cfg.GetServeConfig()

	// CLI flags override config file
	port := serveCfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}

	workers := serveCfg.Workers
	if opts.Workers != 0 {
		workers = opts.Workers
	}

	watch := serveCfg.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	// Validate the watched file exists before starting
	if watch != "" {
		if _, err := os.Stat(watch); os.IsNotExist(err) {
			return fmt.Errorf("watched history file does not exist: %s", watch)
		}
	}

	// Open the snapshot store for the snapshot endpoints
	store, closeStore, err := cmdCtx.OpenStore()
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer closeStore()

	srv := server.NewServer(server.Config{
		Port:    port,
		Watch:   watch,
		Options: cfg.Build.Options(),
		Store:   store,
		Workers: workers,
		Logger:  cmdCtx.Logger,
	})

	fmt.Printf("Starting lineage API server on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop")

	// Stop gracefully on interrupt
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

// Command graphground loads property graphs and grounds patterns against them.
//
//	graphground load graph.yaml --dir ./data
//	graphground ground pattern.yaml --dir ./data --limit 10
//	graphground serve --config graphground.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mstrYoda/graphground"
	"github.com/mstrYoda/graphground/server"
)

var (
	// Global flags
	configPath string
	dataDir    string
	logLevel   string

	cfg    graphground.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "graphground",
	Short: "Ground graph patterns against a property graph",
	Long: `graphground stores a directed, labeled property graph in a bbolt file
and enumerates the groundings of edge patterns with shared variables,
optional (absent) clauses and expression constraints.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = graphground.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Dir = dataDir
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger, err = cfg.NewLogger(os.Stderr)
		if err != nil {
			return err
		}
		cfg.Options.Logger = logger
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <graph.yaml>",
	Short: "Load nodes and edges from a graph document",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var (
	groundLimit    int
	groundDistinct bool
)

var groundCmd = &cobra.Command{
	Use:   "ground <pattern.yaml>",
	Short: "Print the groundings of a pattern document",
	Args:  cobra.ExactArgs(1),
	RunE:  runGround,
}

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP/JSON API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "database directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	groundCmd.Flags().IntVar(&groundLimit, "limit", 0, "stop after this many groundings (0 = all)")
	groundCmd.Flags().BoolVar(&groundDistinct, "distinct", false, "forbid two variables from sharing a node")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")

	rootCmd.AddCommand(loadCmd, groundCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	doc, err := graphground.ParseGraphDoc(data)
	if err != nil {
		return err
	}

	db, err := graphground.Open(cfg.Dir, cfg.Options)
	if err != nil {
		return err
	}
	defer db.Close()

	keys, err := db.LoadGraphDoc(doc)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	out := cmd.OutOrStdout()
	for _, k := range names {
		fmt.Fprintf(out, "%s\t%d\n", k, keys[k])
	}
	fmt.Fprintf(out, "loaded %d nodes, %d edges\n", len(doc.Nodes), len(doc.Edges))
	return nil
}

func runGround(cmd *cobra.Command, args []string) error {
	pat, err := graphground.LoadPatternFile(args[0])
	if err != nil {
		return err
	}

	opts := cfg.Options
	opts.ReadOnly = true
	db, err := graphground.Open(cfg.Dir, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.Ground(cmd.Context(), pat, graphground.GroundOptions{
		Limit:            groundLimit,
		DistinctBindings: groundDistinct,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, g := range res.Groundings {
		fmt.Fprintln(out, g.Vars.String())
	}
	fmt.Fprintf(out, "%d grounding(s) in %s\n", res.Len(), res.Duration.Round(time.Microsecond))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	db, err := graphground.Open(cfg.Dir, cfg.Options)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", "listen", cfg.Listen, "dir", cfg.Dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down", "reason", strings.TrimSpace(fmt.Sprint(context.Cause(gctx))))
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

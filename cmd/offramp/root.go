package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/offramp"
	"github.com/aretw0/offramp/internal/logging"
	"github.com/aretw0/offramp/pkg/adapters/memory"
	redisstore "github.com/aretw0/offramp/pkg/adapters/redis"
	sqlitestore "github.com/aretw0/offramp/pkg/adapters/sqlite"
	"github.com/aretw0/offramp/pkg/graph"
	"github.com/aretw0/offramp/pkg/ports"

	_ "modernc.org/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "offramp",
	Short: "Offramp is a subscription-cancellation flow engine",
	Long: `Offramp resolves guided cancellation flows: branching steps, answer
validation, sticky A/B cohorts and exactly-one durable outcome per
(user, subscription) pair.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("store", "memory", "Storage backend: memory, redis or sqlite")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address (with --store redis)")
	rootCmd.PersistentFlags().String("db", "offramp.db", "SQLite database path (with --store sqlite)")
	rootCmd.PersistentFlags().String("graph", "", "YAML step graph (default: built-in cancellation flow)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

// newLogger builds the process logger from the persistent flags.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}

// openStore builds the selected storage backend. The returned closer is a
// no-op for backends without connections.
func openStore(cmd *cobra.Command) (ports.Store, func() error, error) {
	kind, _ := cmd.Flags().GetString("store")
	switch kind {
	case "memory":
		return memory.NewStore(), func() error { return nil }, nil
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		s := redisstore.New(addr, "", 0)
		return s, s.Close, nil
	case "sqlite":
		path, _ := cmd.Flags().GetString("db")
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		s, err := sqlitestore.New(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (memory, redis, sqlite)", kind)
	}
}

// loadGraph reads the --graph file, falling back to the built-in flow.
func loadGraph(cmd *cobra.Command) (*graph.StepGraph, error) {
	path, _ := cmd.Flags().GetString("graph")
	if path == "" {
		return graph.Cancellation(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()
	return graph.Load(f)
}

// buildEngine wires the engine from the persistent flags.
func buildEngine(cmd *cobra.Command, opts ...offramp.Option) (*offramp.Engine, func() error, error) {
	g, err := loadGraph(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts = append(opts,
		offramp.WithGraph(g),
		offramp.WithStore(store),
		offramp.WithLogger(newLogger(cmd)))
	eng, err := offramp.New(opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return eng, closeStore, nil
}

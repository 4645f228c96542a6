package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/harris/internal/config"
	"github.com/andresmejia3/harris/internal/logging"
	"github.com/andresmejia3/harris/internal/store"
	"github.com/andresmejia3/harris/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds the flags shared by detect, gradient and stats
type Options struct {
	InputPath  string
	OutputDir  string
	Format     string
	NumEngines int
	Workers    int
	Size       string
	K          float64
	Divisor    float64
	Canonical  bool
	JSON       bool
	Persist    bool
	Chart      bool
}

var (
	// DB is the global database connection shared by subcommands.
	// It is only opened for commands that need it.
	DB *store.Store
	// Cfg is the merged file + default configuration
	Cfg = config.Default()
	// Log is the structured diagnostics logger
	Log = logging.Nop()

	dbURL      string
	configPath string
	verbose    bool
)

// Version is the application version.
const Version = "0.1.0"

// annotationDB marks commands that always need the store.
const annotationDB = "db"

var rootCmd = &cobra.Command{
	Use:           "harris",
	Short:         "Harris corner detection for grayscale images",
	Version:       Version, // This enables the --version flag
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Log, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		if configPath == "" {
			configPath = os.Getenv("HARRIS_CONFIG")
		}
		if configPath != "" {
			Cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			Log.Debug("config loaded", zap.String("path", configPath))
		}

		if !needsDB(cmd) {
			return nil
		}

		url := resolveDBURL(dbURL, Cfg.Database.URL)
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
			DB = nil
		}
		_ = Log.Sync()
	},
}

// needsDB reports whether cmd talks to Postgres: either it is annotated,
// or it was asked to persist.
func needsDB(cmd *cobra.Command) bool {
	if cmd.Annotations[annotationDB] == "true" {
		return true
	}
	if f := cmd.Flags().Lookup("persist"); f != nil && f.Value.String() == "true" {
		return true
	}
	return false
}

// resolveDBURL picks the connection string: flag, then HARRIS_DB, then the
// config file, then the POSTGRES_* variables, then a local default.
func resolveDBURL(flag, fromConfig string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("HARRIS_DB"); env != "" {
		return env
	}
	if fromConfig != "" {
		return fromConfig
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	// Fallback to local default if no env vars are present
	return "postgres://localhost:5432/harris"
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		utils.ShowError(fmt.Sprintf("%s failed", rootCmd.Name()), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/harris)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (or $HARRIS_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug-level structured logs on stderr")
}

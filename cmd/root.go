package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance tracker",
	Long: `Face Attendance recognizes registered people in camera frames and keeps
a daily attendance ledger. Each person is recorded at most once per calendar day.

Reference images live in the faces directory (one image per person, named after
the person), attendance is kept in a CSV file or a database.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	slog.SetDefault(newLogger(config.Load().Log, logLevel))
}

// newLogger builds the process logger from the log configuration; a non-empty
// level overrides the configured one. Logs go to stderr so command output on
// stdout stays clean.
func newLogger(cfg config.LogConfig, level string) *slog.Logger {
	if level == "" {
		level = cfg.Level
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eldtechnologies/aicq-agent/internal/config"
	"github.com/eldtechnologies/aicq-agent/internal/transport/aicq"
)

var (
	verbose       bool
	characterFile string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aicq-agent",
	Short: "Chat agent for AICQ rooms with team response arbitration",
	Long: `aicq-agent watches AICQ rooms and its private inbox and decides, message
by message, whether its character should reply. Several agents configured
as a team share one message log and hand conversations to each other so
that one of them answers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if characterFile != "" {
			cfg.CharacterFile = characterFile
		}
		logger = newLogger(cfg, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&characterFile, "character", "c", "", "character file (overrides CHARACTER_FILE)")

	rootCmd.AddCommand(runCmd, registerCmd, splitCmd, checkConfigCmd, signCmd, keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger: console output in development,
// JSON otherwise.
func newLogger(cfg *config.Config, verbose bool) zerolog.Logger {
	var l zerolog.Logger
	if cfg.IsDevelopment() {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		l = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return l.Level(level)
}

// credentialsDir is where the AICQ identity lives.
func credentialsDir() string {
	if cfg.AICQConfigDir != "" {
		return cfg.AICQConfigDir
	}
	return aicq.DefaultConfigDir()
}

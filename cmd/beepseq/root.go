package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/beepseq-go"
	"github.com/cbegin/beepseq-go/internal/config"
	"github.com/cbegin/beepseq-go/internal/telemetry"
)

var (
	configPath string
	debug      bool

	cfg      config.Config
	logger   *slog.Logger
	reporter telemetry.Reporter = telemetry.Nop{}
)

var rootCmd = &cobra.Command{
	Use:   "beepseq",
	Short: "Edit, check and play beep note sequences",
	Long: `beepseq works with note sequences written as a mapping from note index
to a (frequency Hz, duration ms) pair, for example {1: (261, 500), 2: (293, 500)}.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, !cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		initLogger(debug || cfg.Log.Debug)
		reporter, err = telemetry.New(cfg.Sentry.DSN, cfg.Sentry.Environment, "beepseq")
		if err != nil {
			logger.Warn("telemetry disabled", "err", err)
			reporter = telemetry.Nop{}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "beepseq.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
}

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// newSession opens path into a fresh session. An empty path starts from the
// default scale and "-" reads standard input.
func newSession(path string, opts ...beepseq.SessionOption) (*beepseq.Session, error) {
	opts = append([]beepseq.SessionOption{
		beepseq.WithConfig(cfg),
		beepseq.WithLogger(logger),
		beepseq.WithReporter(reporter),
	}, opts...)

	switch path {
	case "":
		return beepseq.NewSession(beepseq.NewTextBuffer(beepseq.DefaultNotes), opts...), nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return beepseq.NewSession(beepseq.NewTextBuffer(string(data)), opts...), nil
	}
	s := beepseq.NewSession(nil, opts...)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	return s, nil
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

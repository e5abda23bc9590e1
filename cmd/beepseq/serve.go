package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/beepseq-go/internal/api"
	"github.com/cbegin/beepseq-go/internal/notes"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address; defaults to the config value")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the formatter over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		parser := notes.NewParser(notes.ParserConfig{
			MinFrequency:  cfg.Parser.MinFrequency,
			MaxFrequency:  cfg.Parser.MaxFrequency,
			MaxDurationMs: cfg.Parser.MaxDurationMs,
			MaxDepth:      cfg.Parser.MaxDepth,
		})
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(parser, logger).Handler(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown", "err", err)
			}
		}()

		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		reporter.Flush(2 * time.Second)
		return nil
	},
}

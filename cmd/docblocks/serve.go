package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docblocks/internal/api"
	"github.com/dgallion1/docblocks/internal/drive"
	"github.com/dgallion1/docblocks/internal/ledger"
	"github.com/dgallion1/docblocks/internal/notion"
	"github.com/dgallion1/docblocks/internal/pipeline"
	"github.com/dgallion1/docblocks/internal/restructure"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Notion webhook service",
	Long: `Serve accepts Notion automation webhooks, queues one delivery job per
request and exposes job status, a synchronous convert endpoint and the
delivery ledger over HTTP.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(os.Stdout, cfg)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize clients.
	nc := notion.NewClient(cfg.NotionBaseURL, cfg.NotionAPIKey, notion.Options{
		Version:    cfg.NotionVersion,
		Timeout:    cfg.NotionTimeout,
		MaxRetries: cfg.NotionMaxRetries,
	})
	defer nc.Close()
	dc := drive.NewClient(cfg.DriveBaseURL, cfg.DriveTimeout, cfg.MaxDownloadBytes)

	llm, err := restructure.New(restructureSettings(cfg))
	if err != nil {
		return err
	}
	var stats *restructure.LLMStats
	if llm != nil {
		stats = restructure.NewLLMStats(time.Hour)
		llm = restructure.Timed(llm, stats)
	}

	var led *ledger.Ledger
	if cfg.LedgerPath != "" {
		led, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer led.Close()
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Drive:        dc,
		Restructurer: llm,
		Notion:       nc,
		Ledger:       led,
	}, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	api.Version = version
	srv := api.NewServer(orch, llm, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docblocks", "port", cfg.Port, "version", version,
			"restructure", cfg.RestructureProvider, "ledger", cfg.LedgerPath != "")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		orch.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown.
	log.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	orch.Stop()
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/user/amana/internal/dedup"
	"github.com/user/amana/internal/delivery"
	"github.com/user/amana/internal/dialog"
	"github.com/user/amana/internal/dispatch"
	"github.com/user/amana/internal/flow"
	"github.com/user/amana/internal/gateway"
	"github.com/user/amana/internal/nlu"
	"github.com/user/amana/internal/scheduler"
	"github.com/user/amana/internal/snapshot"
	"github.com/user/amana/internal/speech"
	"github.com/user/amana/internal/store"
	"github.com/user/amana/internal/telegram"
	"github.com/user/amana/internal/types"
	"github.com/user/amana/internal/webhook"
	"github.com/user/amana/internal/workspace"
	"github.com/user/amana/pkg/llm"
	"github.com/user/amana/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the amana daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "amana.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	contextsDir := filepath.Join(cfg.DataDir, "contexts")
	if err := os.MkdirAll(contextsDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	// Stores
	contexts := store.New(contextsDir)
	automations := store.NewAutomationStore(filepath.Join(cfg.DataDir, "automations.json"))

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})

	// NLU
	classifier, err := nlu.NewClassifier(provider, cfg.LLM.Model, tz, cfg.Confidence)
	if err != nil {
		return fmt.Errorf("create classifier: %w", err)
	}
	extractor, err := nlu.NewExtractor(provider, cfg.LLM.Model, tz)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}

	// Google Workspace backends
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws, err := workspace.New(ctx, workspace.Credentials{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RefreshToken: cfg.Google.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("create workspace client: %w", err)
	}
	dispatcher := dispatch.New(ws, tz, cfg.Google.DriveFolderID, cfg.Google.SpreadsheetID)

	// Dialog engine
	registry := flow.NewRegistry()
	orchestrator := dialog.New(contexts, classifier, extractor, registry, dispatcher, tz)

	// Gateway
	guard := dedup.New(time.Duration(cfg.DedupTTLMin) * time.Minute)
	gw := gateway.New(orchestrator, guard, int64(cfg.MaxConcurrent))
	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("amana started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"timezone", cfg.Timezone,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// Telegram adapter
	var adapter *telegram.Adapter
	if cfg.Telegram.Token != "" {
		var engine *speech.Engine
		if cfg.LLM.APIKey != "" {
			engine = speech.New(cfg.LLM.APIKey, "")
		}
		adapter, err = telegram.New(cfg.Telegram.Token, gw, engine, cfg.VoiceReply)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		if cfg.Telegram.WebhookURL != "" {
			if err := adapter.SetWebhook(cfg.Telegram.WebhookURL + "/telegram/webhook"); err != nil {
				slog.Error("register telegram webhook failed", "error", err)
			}
		}
		deliveryReg.Register("", adapter.Deliver)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Scheduler: automations enter the same dialog path as user messages
	// and their replies go out through the delivery registry.
	sched := scheduler.New(automations, func(conversationID types.ConversationID, message string) {
		deliveryID := types.DeliveryID("auto-" + string(types.NewAutomationID()))
		err := gw.HandleInbound(deliveryID, conversationID, message, gateway.WithOnComplete(func(reply string) {
			if reply == "" {
				return
			}
			if err := deliveryReg.Deliver(conversationID, reply); err != nil {
				slog.Error("automation delivery failed", "conversation_id", string(conversationID), "error", err)
			}
		}))
		if err != nil {
			slog.Error("automation enqueue failed", "conversation_id", string(conversationID), "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// Nightly context snapshot to Drive, when configured.
	archiver := snapshot.New(ws, contextsDir, cfg.Google.DriveFolderID)
	if archiver.Enabled() {
		go runSnapshots(ctx, archiver)
	}

	// HTTP server
	var updates webhook.UpdateHandler
	if adapter != nil {
		updates = adapter
	} else {
		updates = noopUpdates{}
	}
	srv := webhook.NewServer(updates, dispatcher, contexts, cfg.Telegram.ExecKey)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: srv,
	}
	go func() {
		slog.Info("http server started", "listen", cfg.HTTP.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, reloading automations")
			if err := sched.Reload(); err != nil {
				slog.Error("scheduler reload failed", "error", err)
			}
			continue
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}

// runSnapshots archives all conversation contexts once a day.
func runSnapshots(ctx context.Context, archiver *snapshot.Archiver) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := archiver.Run(ctx); err != nil {
				slog.Error("context snapshot failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// noopUpdates discards Telegram updates when no adapter is configured.
type noopUpdates struct{}

func (noopUpdates) HandleUpdate(ctx context.Context, update tgbotapi.Update) {}

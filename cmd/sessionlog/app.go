package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/user/sessionlog/internal/batch"
	"github.com/user/sessionlog/internal/config"
	"github.com/user/sessionlog/internal/delivery"
	"github.com/user/sessionlog/internal/note"
	"github.com/user/sessionlog/internal/state"
	"github.com/user/sessionlog/internal/summary"
	"github.com/user/sessionlog/internal/telegram"
	"github.com/user/sessionlog/pkg/llm"
	"github.com/user/sessionlog/pkg/llm/ollama"
	"github.com/user/sessionlog/pkg/llm/openai"
	"github.com/user/sessionlog/pkg/retry"
	"github.com/user/sessionlog/pkg/vault"
)

// app holds the components shared by the batch commands.
type app struct {
	cfg       *config.Config
	records   *state.RecordStore
	ledger    *state.Ledger
	registry  *delivery.Registry
	processor *batch.Processor
	telegram  *telegram.Adapter
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	lc := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     seconds(cfg.LLM.TimeoutSeconds),
		Retry:       retry.New(cfg.Retry.MaxAttempts, cfg.RetryDelay()),
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "ollama":
		return ollama.New(lc), nil
	case "openai":
		return openai.New(lc), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func newStores(cfg *config.Config) (*state.RecordStore, *state.Ledger) {
	return state.NewRecordStore(cfg.PendingDir(), cfg.ProcessedDir()), state.NewLedger(cfg.LedgerPath())
}

// newApp wires the batch processor from cfg. With a Telegram token the bot
// is connected and registered for "telegram:" notify keys, but not started.
func newApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	var opts []summary.Option
	if counter, err := summary.NewTiktokenCounter(cfg.LLM.Model); err != nil {
		slog.Warn("token counting disabled", "error", err)
	} else {
		opts = append(opts, summary.WithTokenBudget(counter, cfg.LLM.MaxPromptTokens))
	}
	synth := summary.NewSynthesizer(provider, cfg.Summary.Language, opts...)

	store := vault.New(vault.Config{
		BaseURL:            cfg.Obsidian.BaseURL,
		APIKey:             cfg.Obsidian.APIKey,
		InsecureSkipVerify: cfg.Obsidian.InsecureSkipVerify,
		Timeout:            seconds(cfg.Obsidian.TimeoutSeconds),
		Retry:              retry.New(cfg.Retry.MaxAttempts, cfg.RetryDelay()),
	})
	merger := note.NewMerger(store, note.Options{
		DailyNotePattern: cfg.Paths.DailyNote,
		TemplatePath:     cfg.Paths.DailyTemplate,
		KnowledgeBase:    cfg.Paths.KnowledgeBase,
		Section:          cfg.DailyNote.Section,
		Tag:              cfg.Knowledge.Tag,
	})

	records, ledger := newStores(cfg)
	a := &app{
		cfg:      cfg,
		records:  records,
		ledger:   ledger,
		registry: delivery.NewRegistry(),
	}

	procOpts := []batch.Option{batch.WithLedger(ledger)}
	if cfg.Notify.SessionKey != "" {
		procOpts = append(procOpts, batch.WithNotifier(a.registry, cfg.Notify.SessionKey))
	}
	a.processor = batch.NewProcessor(records, synth, merger, procOpts...)

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, &controller{proc: a.processor}, cfg.Notify.SessionKey)
		if err != nil {
			return nil, fmt.Errorf("create telegram adapter: %w", err)
		}
		a.telegram = adapter
		a.registry.Register("telegram:", adapter.Deliver)
	}
	return a, nil
}

// controller exposes the processor to chat commands.
type controller struct {
	proc *batch.Processor
}

func (c *controller) Status(ctx context.Context) (string, error) {
	plan, err := c.proc.Plan(ctx, time.Now())
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Window %s: %s to %s\n", plan.Target,
		plan.Start.Format("2006-01-02 15:04"), plan.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Pending: %d (in window: %d)", plan.Pending, plan.InWindow)
	for _, dc := range plan.Backfill {
		fmt.Fprintf(&b, "\n  %s: %d sessions", dc.Date, dc.Sessions)
	}
	return b.String(), nil
}

func (c *controller) Run(ctx context.Context) (string, error) {
	report, err := c.proc.RunCurrent(ctx, time.Now())
	if err != nil {
		return "", err
	}
	return report.String(), nil
}

func (c *controller) Backfill(ctx context.Context) (string, error) {
	report, err := c.proc.Backfill(ctx)
	if err != nil {
		return "", err
	}
	return report.String(), nil
}

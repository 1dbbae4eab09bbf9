package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reposter/internal/config"
	"reposter/internal/feedsource"
	"reposter/internal/generator"
	"reposter/internal/pipeline"
	"reposter/internal/platform"
	"reposter/internal/scanner"
	"reposter/internal/storage"
	"reposter/internal/telegram"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the dependencies shared by all commands.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Storage
	gate  *platform.Gate
}

func newRootCmd() *cobra.Command {
	a := &app{gate: platform.NewGate()}
	var envFile string

	root := &cobra.Command{
		Use:          "reposter",
		Short:        "Scan Telegram channels, rewrite posts with AI and republish them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(cfg.LogLevel)
			return a.open()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")

	root.AddCommand(
		scanCmd(a),
		messagesCmd(a),
		deleteCmd(a),
		transformCmd(a),
		rewritesCmd(a),
		regenerateCmd(a),
		publishCmd(a),
		promptCmd(a),
		watchCmd(a),
		runCmd(a),
		botCmd(a),
	)
	return root
}

func (a *app) open() error {
	if dir := filepath.Dir(a.cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := storage.NewSQLite(a.cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", a.cfg.DatabasePath, err)
	}
	a.store = store
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) scanner() *scanner.Scanner {
	src := feedsource.New(&http.Client{Timeout: 30 * time.Second}, a.cfg.HistoryURLTemplate)
	return scanner.New(platform.Exclusive(src, a.gate), scanner.Options{
		BatchLimit: a.cfg.ScanBatchLimit,
		Pacing:     a.cfg.ScanPacing,
	}, a.log)
}

func (a *app) generator() (*generator.Generator, error) {
	if err := a.cfg.RequireAI(); err != nil {
		return nil, err
	}
	var text generator.TextModel
	switch a.cfg.TextProvider {
	case config.ProviderAnthropic:
		text = generator.NewAnthropicText(a.cfg.AnthropicAPIKey, a.cfg.TextModel)
	default:
		text = generator.NewOpenAIText(generator.OpenAIConfig{
			APIKey:  a.cfg.OpenAIAPIKey,
			BaseURL: a.cfg.OpenAIBaseURL,
			Model:   a.cfg.TextModel,
		})
	}
	image := generator.NewOpenAIImage(generator.OpenAIConfig{
		APIKey:  a.cfg.OpenAIAPIKey,
		BaseURL: a.cfg.OpenAIBaseURL,
		Model:   a.cfg.ImageModel,
	})
	client := &http.Client{Timeout: time.Minute}
	return generator.New(text, image, client, a.cfg.ImagesDir, a.log), nil
}

func (a *app) publisher() (*telegram.Publisher, error) {
	if err := a.cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	return telegram.New(a.cfg.TelegramBotToken, a.gate, a.log)
}

// pipelineDeps selects the optional collaborators of a pipeline.
type pipelineDeps struct {
	ai      bool
	publish bool
}

func (a *app) pipeline(deps pipelineDeps) (*pipeline.Pipeline, error) {
	var gen pipeline.Transformer
	if deps.ai {
		g, err := a.generator()
		if err != nil {
			return nil, err
		}
		gen = g
	}

	var (
		pub      pipeline.Publisher
		notifier pipeline.Notifier
	)
	notify := a.cfg.NotifyChatID != 0 && a.cfg.TelegramBotToken != ""
	if deps.publish || notify {
		p, err := a.publisher()
		if err != nil {
			return nil, err
		}
		pub = p
		if notify {
			notifier = p
		}
	}

	return pipeline.New(a.store, a.scanner(), gen, pub, notifier, pipeline.Options{
		ScanTimeout:  a.cfg.ScanTimeout,
		NotifyChatID: a.cfg.NotifyChatID,
	}, a.log), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

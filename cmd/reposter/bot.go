package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"reposter/internal/bot"
	"reposter/internal/scheduler"
)

func botCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram operator bot together with the watch scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}
			ai := a.cfg.RequireAI() == nil
			if !ai {
				a.log.Warn("AI keys are not configured, /transform is disabled")
			}
			p, err := a.pipeline(pipelineDeps{ai: ai, publish: true})
			if err != nil {
				return err
			}

			b, err := bot.New(a.cfg.TelegramBotToken, a.store, p, a.cfg, a.log)
			if err != nil {
				return err
			}
			sched := scheduler.New(a.store, p, a.log)
			sched.SetTickInterval(a.cfg.WatchTick)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a.log.Info("starting bot")
			runAll(ctx, sched.Run, b.Run)
			a.log.Info("bot stopped")
			return nil
		},
	}
}

// runAll runs every loop in its own goroutine and returns once all of them
// have returned. The first loop to return cancels the others.
func runAll(ctx context.Context, loops ...func(context.Context)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			loop(ctx)
		}()
	}
	wg.Wait()
}

package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"reposter/internal/filter"
	"reposter/internal/model"
	"reposter/internal/pipeline"
	"reposter/internal/scheduler"
)

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage periodic channel scans",
	}
	cmd.AddCommand(
		watchAddCmd(a),
		watchListCmd(a),
		watchToggleCmd(a, "pause", false),
		watchToggleCmd(a, "resume", true),
		watchDeleteCmd(a),
	)
	return cmd
}

func watchAddCmd(a *app) *cobra.Command {
	var (
		include, exclude string
		interval         int
	)
	cmd := &cobra.Command{
		Use:   "add <channel>",
		Short: "Scan a channel periodically while `reposter run` is active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %d", interval)
			}
			w := model.Watch{
				Channel:         pipeline.ChannelKey(args[0]),
				Include:         filter.ParseTerms(include),
				Exclude:         filter.ParseTerms(exclude),
				IntervalMinutes: interval,
				IsActive:        true,
			}
			if err := a.store.CreateWatch(cmd.Context(), &w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watch %d created for %s\n", w.ID, w.Channel)
			return nil
		},
	}
	cmd.Flags().StringVar(&include, "include", "", "comma separated keywords, any of which must occur")
	cmd.Flags().StringVar(&exclude, "exclude", "", "comma separated keywords that reject a message")
	cmd.Flags().IntVar(&interval, "interval", 60, "minutes between scans")
	return cmd
}

func watchListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watches, err := a.store.ListWatches(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, w := range watches {
				status := "active"
				if !w.IsActive {
					status = "paused"
				}
				last := "never"
				if w.LastCheckAt != nil {
					last = w.LastCheckAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "#%d\t%s\t%s\tevery %dm\tlast %s\t+%s\t-%s\n",
					w.ID, w.Channel, status, w.IntervalMinutes, last,
					strings.Join(w.Include, ","), strings.Join(w.Exclude, ","))
			}
			return tw.Flush()
		},
	}
}

func watchToggleCmd(a *app, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			w, err := a.store.GetWatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			w.IsActive = active
			if err := a.store.UpdateWatch(cmd.Context(), w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watch %d %sd\n", id, use)
			return nil
		},
	}
}

func watchDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteWatch(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watch %d deleted\n", id)
			return nil
		},
	}
}

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run active watches until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(pipelineDeps{})
			if err != nil {
				return err
			}
			sched := scheduler.New(a.store, p, a.log)
			sched.SetTickInterval(a.cfg.WatchTick)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a.log.Info("starting scheduler", "tick", a.cfg.WatchTick)
			sched.Run(ctx)
			a.log.Info("scheduler stopped")
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"reposter/internal/filter"
	"reposter/internal/model"
	"reposter/internal/pipeline"
)

const previewLen = 60

func scanCmd(a *app) *cobra.Command {
	var (
		mode             string
		since            string
		include, exclude string
	)
	cmd := &cobra.Command{
		Use:   "scan <channel>",
		Short: "Scan a channel for new messages matching the keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.ScanRequest{
				Channel: args[0],
				Mode:    model.ScanMode(mode),
				Policy: model.KeywordPolicy{
					Include: filter.ParseTerms(include),
					Exclude: filter.ParseTerms(exclude),
				},
			}
			if since != "" {
				switch req.Mode {
				case "":
					req.Mode = model.ScanFromDate
				case model.ScanFromDate:
				default:
					return fmt.Errorf("--since cannot be combined with --mode %s", mode)
				}
				t, err := parseDate(since)
				if err != nil {
					return err
				}
				req.Since = &t
			}

			p, err := a.pipeline(pipelineDeps{})
			if err != nil {
				return err
			}
			res, err := p.Scan(cmd.Context(), req)
			if err != nil {
				return err
			}

			if res.Gap {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: history before %s is no longer available, messages after %s may be missing\n",
					res.Earliest.Format("2006-01-02 15:04"), res.Resume.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new message(s)\n", res.Channel, len(res.Messages))
			return printMessages(cmd.OutOrStdout(), res.Messages)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "resume mode: start, continue or date (default continue, date with --since)")
	cmd.Flags().StringVar(&since, "since", "", "scan messages posted after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&include, "include", "", "comma separated keywords, any of which must occur")
	cmd.Flags().StringVar(&exclude, "exclude", "", "comma separated keywords that reject a message")
	return cmd
}

func messagesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List stored messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgs, err := a.store.ListMessages(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printMessages(cmd.OutOrStdout(), msgs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of messages to show, 0 for all")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete a stored message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteMessage(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "message %d deleted\n", id)
			return nil
		},
	}
}

func printMessages(w io.Writer, msgs []model.Message) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, m := range msgs {
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n", m.ID, m.Date.UTC().Format("2006-01-02 15:04"), m.Channel, oneLine(m.Text, previewLen))
	}
	return tw.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339", s)
}

func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return string(r)
}

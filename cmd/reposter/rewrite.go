package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"reposter/internal/generator"
	"reposter/internal/model"
)

func transformCmd(a *app) *cobra.Command {
	var promptID int64
	cmd := &cobra.Command{
		Use:   "transform <message-id>",
		Short: "Rewrite a stored message with AI and generate an image for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline(pipelineDeps{ai: true})
			if err != nil {
				return err
			}
			rw, err := p.Transform(cmd.Context(), id, promptID)
			if errors.Is(err, generator.ErrImageUnavailable) {
				a.log.Warn("rewrite stored without image", "rewrite_id", rw.ID, "error", err)
			} else if err != nil {
				return err
			}
			printRewrite(cmd, rw)
			return nil
		},
	}
	cmd.Flags().Int64Var(&promptID, "prompt", 0, "prompt id, 0 for the default prompts")
	return cmd
}

func regenerateCmd(a *app) *cobra.Command {
	var (
		promptID int64
		image    bool
	)
	cmd := &cobra.Command{
		Use:   "regenerate <rewrite-id>",
		Short: "Regenerate the text, or with --image the image, of a rewrite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline(pipelineDeps{ai: true})
			if err != nil {
				return err
			}
			var rw *model.Rewrite
			if image {
				rw, err = p.RegenerateImage(cmd.Context(), id, promptID)
			} else {
				rw, err = p.RegenerateText(cmd.Context(), id, promptID)
			}
			if err != nil {
				return err
			}
			printRewrite(cmd, rw)
			return nil
		},
	}
	cmd.Flags().Int64Var(&promptID, "prompt", 0, "prompt id, 0 for the default prompts")
	cmd.Flags().BoolVar(&image, "image", false, "regenerate the image instead of the text")
	return cmd
}

func rewritesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewrites",
		Short: "List transformed messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := a.store.ListRewrites(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, rw := range all {
				status := "draft"
				if rw.PublishedAt != nil {
					status = "published " + rw.PublishedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n", rw.ID, rw.Title, status, oneLine(rw.Text, previewLen))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(rewriteEditCmd(a))
	return cmd
}

func rewriteEditCmd(a *app) *cobra.Command {
	var text, file string
	cmd := &cobra.Command{
		Use:   "edit <rewrite-id>",
		Short: "Replace the text of a rewrite before publishing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if file != "" {
				text, err = readText(cmd, file)
				if err != nil {
					return err
				}
			}
			p, err := a.pipeline(pipelineDeps{})
			if err != nil {
				return err
			}
			rw, err := p.EditRewrite(cmd.Context(), id, text)
			if err != nil {
				return err
			}
			printRewrite(cmd, rw)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new text of the rewrite")
	cmd.Flags().StringVar(&file, "file", "", "read the new text from a file, - for stdin")
	cmd.MarkFlagsOneRequired("text", "file")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
	return cmd
}

func readText(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func publishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <rewrite-id> <channel>",
		Short: "Publish a rewrite to a channel the bot administers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline(pipelineDeps{publish: true})
			if err != nil {
				return err
			}
			if err := p.Publish(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rewrite %d published to %s\n", id, args[1])
			return nil
		},
	}
}

func printRewrite(cmd *cobra.Command, rw *model.Rewrite) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rewrite #%d: %s\n", rw.ID, rw.Title)
	if rw.ImagePath != "" {
		fmt.Fprintf(out, "image: %s\n", rw.ImagePath)
	}
	fmt.Fprintf(out, "\n%s\n", rw.Text)
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"reposter/internal/model"
)

func promptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage named AI prompts",
	}
	cmd.AddCommand(promptAddCmd(a), promptListCmd(a), promptEditCmd(a), promptDeleteCmd(a))
	return cmd
}

type promptFlags struct {
	message, image, name string
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.message, "message", "", "instructions used to rewrite the message")
	cmd.Flags().StringVar(&f.image, "image", "", "instructions used to generate the image")
	cmd.Flags().StringVar(&f.name, "title", "", "instructions used to extract the title")
}

func promptAddCmd(a *app) *cobra.Command {
	var f promptFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a prompt; empty fields fall back to the defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := model.Prompt{Name: args[0], MessagePrompt: f.message, ImagePrompt: f.image, NamePrompt: f.name}
			if err := a.store.CreatePrompt(cmd.Context(), &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prompt %d created\n", p.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func promptEditCmd(a *app) *cobra.Command {
	var f promptFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the fields of a prompt given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.store.GetPrompt(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("message") {
				p.MessagePrompt = f.message
			}
			if cmd.Flags().Changed("image") {
				p.ImagePrompt = f.image
			}
			if cmd.Flags().Changed("title") {
				p.NamePrompt = f.name
			}
			if err := a.store.UpdatePrompt(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prompt %d updated\n", p.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func promptListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompts, err := a.store.ListPrompts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, p := range prompts {
				fmt.Fprintf(tw, "#%d\t%s\t%s\n", p.ID, p.Name, oneLine(p.MessagePrompt, previewLen))
			}
			return tw.Flush()
		},
	}
}

func promptDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeletePrompt(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prompt %d deleted\n", id)
			return nil
		},
	}
}

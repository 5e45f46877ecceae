package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func autofillCmd() *cobra.Command {
	var (
		toolOutput string
		apply      bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "autofill <project-id> <stage>",
		Short: "Suggest stage inputs from earlier stages and stored tool outputs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			suggestions, err := a.svc.Suggest(cmd.Context(), args[0], args[1], toolOutput)
			if err != nil {
				return userError(err)
			}
			if asJSON && !apply {
				return printJSON(os.Stdout, suggestions)
			}
			if len(suggestions) == 0 {
				fmt.Println(mutedStyle.Render("no suggestions"))
				return nil
			}
			for _, sg := range suggestions {
				fmt.Printf("%s = %s\n  %s\n", titleStyle.Render(sg.Field), sg.Value, mutedStyle.Render(sg.Description))
			}
			if !apply {
				return nil
			}
			view, err := a.svc.ApplySuggestions(cmd.Context(), args[0], args[1], suggestions)
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(os.Stdout, view)
			}
			fmt.Printf("applied %d suggestion(s), inputs %.0f%% complete\n", len(suggestions), view.Completeness.Score*100)
			return nil
		},
	}
	cmd.Flags().StringVar(&toolOutput, "tool-output", "", "use only this stored tool output")
	cmd.Flags().BoolVar(&apply, "apply", false, "record the suggestions as inputs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/metalagman/blueprint/internal/report"
	"github.com/spf13/cobra"
)

func progressCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "progress <project-id>",
		Short: "Show the status of every stage of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			project, err := a.svc.GetProject(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			progress, err := a.svc.Progress(cmd.Context(), project.ID)
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(os.Stdout, progress)
			}
			fmt.Print(renderProgress(project.Name, progress))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		raw   bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "report <project-id>",
		Short: "Render every generated stage of a project as one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			project, err := a.svc.GetProject(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			progress, err := a.svc.Progress(cmd.Context(), project.ID)
			if err != nil {
				return userError(err)
			}
			md := report.Project(project.Name, a.svc.Registry(), progress)
			if raw {
				fmt.Print(md)
				return nil
			}
			out, err := report.Render(md, width)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "markdown", false, "print raw markdown")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	return cmd
}

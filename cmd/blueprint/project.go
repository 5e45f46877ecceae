package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(projectCreateCmd())
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectDeleteCmd())
	return cmd
}

func projectCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			p, err := a.svc.CreateProject(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return userError(err)
			}
			log.Info().Str("project", p.ID).Msgf("created project %q", p.Name)
			fmt.Println(p.ID)
			return nil
		},
	}
}

func projectListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			projects, err := a.svc.ListProjects(cmd.Context())
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(os.Stdout, projects)
			}
			if len(projects) == 0 {
				fmt.Println(mutedStyle.Render("no projects"))
				return nil
			}
			for _, p := range projects {
				fmt.Printf("%s  %s  %s\n", p.ID, titleStyle.Render(p.Name), mutedStyle.Render(p.CreatedAt.Local().Format(time.DateTime)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project with its steps and tool outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := a.svc.DeleteProject(cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			log.Info().Str("project", args[0]).Msg("deleted project")
			return nil
		},
	}
}

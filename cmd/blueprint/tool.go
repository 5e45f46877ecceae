package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func toolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Manage outputs of external tools used for auto-fill",
	}
	cmd.AddCommand(toolImportCmd())
	cmd.AddCommand(toolListCmd())
	return cmd
}

func toolImportCmd() *cobra.Command {
	var (
		toolID   string
		toolName string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "import <project-id>",
		Short: "Store a tool's JSON output for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readJSONObject(file)
			if err != nil {
				return err
			}
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			if toolName == "" {
				toolName = toolID
			}
			out, err := a.svc.ImportToolOutput(cmd.Context(), args[0], toolID, toolName, data)
			if err != nil {
				return userError(err)
			}
			log.Info().Str("project", out.ProjectID).Str("tool", out.ToolID).Msg("stored tool output")
			fmt.Println(out.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&toolID, "tool", "", "tool identifier")
	cmd.Flags().StringVar(&toolName, "name", "", "display name of the tool (defaults to --tool)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file with the tool output, - for stdin")
	_ = cmd.MarkFlagRequired("tool")
	return cmd
}

func toolListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List stored tool outputs, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			outputs, err := a.svc.ListToolOutputs(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(os.Stdout, outputs)
			}
			for _, out := range outputs {
				fmt.Printf("%s  %-20s %s\n", out.ID, titleStyle.Render(out.ToolName), mutedStyle.Render(out.CreatedAt.Local().Format(time.DateTime)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

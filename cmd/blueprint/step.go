package main

import (
	"fmt"
	"os"
	"time"

	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/metalagman/blueprint/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func stepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Work on one stage of a project",
	}
	cmd.AddCommand(stepShowCmd())
	cmd.AddCommand(stepSetCmd())
	cmd.AddCommand(stepGenerateCmd())
	cmd.AddCommand(stepEditCmd())
	cmd.AddCommand(stepResetEditCmd())
	cmd.AddCommand(stepHistoryCmd())
	return cmd
}

type stepPrinter struct {
	asJSON bool
	width  int
}

func (p *stepPrinter) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.asJSON, "json", false, "print JSON")
	cmd.Flags().IntVar(&p.width, "width", 100, "word wrap width for rendered output")
}

func (p *stepPrinter) print(a *app, view pipeline.StepView) error {
	if p.asJSON {
		return printJSON(os.Stdout, view)
	}
	stage, err := a.svc.Registry().Stage(view.StageKey)
	if err != nil {
		return userError(err)
	}
	out, err := report.Render(report.Step(stage, view), p.width)
	if err != nil {
		return err
	}
	fmt.Print(out)
	if !view.Completeness.OK {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Inputs %.0f%% complete.", view.Completeness.Score*100)))
	}
	if view.Next != "" {
		fmt.Println(mutedStyle.Render("Next stage: " + view.Next))
	}
	return nil
}

func stepShowCmd() *cobra.Command {
	var p stepPrinter
	cmd := &cobra.Command{
		Use:   "show <project-id> <stage>",
		Short: "Show the inputs and output of a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			view, err := a.svc.GetStep(cmd.Context(), args[0], args[1])
			if err != nil {
				return userError(err)
			}
			return p.print(a, view)
		},
	}
	p.bind(cmd)
	return cmd
}

func stepSetCmd() *cobra.Command {
	var p stepPrinter
	cmd := &cobra.Command{
		Use:   "set <project-id> <stage> field=value...",
		Short: "Record input values for a stage",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			view, err := a.svc.RecordInputs(cmd.Context(), args[0], args[1], values)
			if err != nil {
				return userError(err)
			}
			return p.print(a, view)
		},
	}
	p.bind(cmd)
	return cmd
}

func stepGenerateCmd() *cobra.Command {
	var p stepPrinter
	cmd := &cobra.Command{
		Use:   "generate <project-id> <stage>",
		Short: "Generate the stage output from its inputs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			log.Info().Str("project", args[0]).Str("stage", args[1]).Msg("generating")
			view, err := a.svc.Generate(cmd.Context(), args[0], args[1])
			if err != nil {
				return userError(err)
			}
			return p.print(a, view)
		},
	}
	p.bind(cmd)
	return cmd
}

func stepEditCmd() *cobra.Command {
	var (
		p    stepPrinter
		file string
	)
	cmd := &cobra.Command{
		Use:   "edit <project-id> <stage>",
		Short: "Replace the stage output with your own JSON object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edited, err := readJSONObject(file)
			if err != nil {
				return err
			}
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			view, err := a.svc.EditOutput(cmd.Context(), args[0], args[1], edited)
			if err != nil {
				return userError(err)
			}
			return p.print(a, view)
		},
	}
	p.bind(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file with the edited output, - for stdin")
	return cmd
}

func stepResetEditCmd() *cobra.Command {
	var p stepPrinter
	cmd := &cobra.Command{
		Use:   "reset-edit <project-id> <stage>",
		Short: "Drop your edit and use the generated output again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			view, err := a.svc.ClearEdit(cmd.Context(), args[0], args[1])
			if err != nil {
				return userError(err)
			}
			return p.print(a, view)
		},
	}
	p.bind(cmd)
	return cmd
}

func stepHistoryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <project-id> [stage]",
		Short: "Show the event history of a project or one stage",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			stage := ""
			if len(args) == 2 {
				stage = args[1]
			}
			events, err := a.svc.History(cmd.Context(), args[0], stage)
			if err != nil {
				return userError(err)
			}
			if asJSON {
				return printJSON(os.Stdout, events)
			}
			for _, ev := range events {
				fmt.Printf("%4d  %s  %-18s %-20s %s\n", ev.Seq, mutedStyle.Render(ev.TS.Local().Format(time.DateTime)), ev.StageKey, ev.Type, ev.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

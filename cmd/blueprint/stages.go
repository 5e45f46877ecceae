package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/metalagman/blueprint/internal/framework"
)

func stagesCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stages [key]",
		Short: "List stage definitions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := framework.Default()
			var v any = registry.Export()
			if len(args) == 1 {
				st, err := registry.Stage(args[0])
				if err != nil {
					return userError(err)
				}
				v = st.Export()
			}
			switch format {
			case "json":
				return printJSON(os.Stdout, v)
			case "yaml":
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(v)
			case "text":
				for i, st := range registry.Stages() {
					if len(args) == 1 && st.Key != args[0] {
						continue
					}
					fmt.Printf("%d. %s %s\n", i+1, titleStyle.Render(st.Title), mutedStyle.Render("("+st.Key+")"))
					fmt.Printf("   %s\n", st.Description)
					for _, f := range st.Fields {
						req := ""
						if f.Required {
							req = " *"
						}
						fmt.Printf("   - %s%s\n", f.ID, req)
					}
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	return cmd
}

package main

import (
	"github.com/metalagman/blueprint/internal/mcptools"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			log.Debug().Msg("serving MCP over stdio")
			return mcptools.RunStdio(cmd.Context(), mcptools.NewService(a.svc))
		},
	}
}

// Package mcptools exposes the pipeline as Model Context Protocol tools.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the pipeline tools registered.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "blueprint",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_stages",
		Description: "List the planning stages in pipeline order with their input fields and output schema.",
	}, svc.ListStages)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_progress",
		Description: "Return the status, inputs and effective output of every stage of a project, and the current stage.",
	}, svc.GetProgress)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_inputs",
		Description: "Merge input values into a stage of a project. Fields not given keep their values.",
	}, svc.RecordInputs)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_step",
		Description: "Generate the structured output of a stage from its inputs. Fails listing missing fields when required inputs are absent.",
	}, svc.GenerateStep)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_autofill",
		Description: "Suggest input values for a stage from a stored tool output or from earlier stages. Set apply to record them.",
	}, svc.SuggestAutofill)

	return server
}

// RunStdio serves the tools over stdin/stdout until ctx is done or the client disconnects.
func RunStdio(ctx context.Context, svc *Service) error {
	return NewServer(svc).Run(ctx, &mcp.StdioTransport{})
}

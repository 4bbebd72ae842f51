package main

import (
	"github.com/hyperengineering/gatelog"
	gatelogmcp "github.com/hyperengineering/gatelog/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

Agents get four tools: gatelog_sync, gatelog_status, gatelog_settings and
gatelog_records. Configure the agent to run 'gatelog mcp' with the usual
GATELOG_* environment:

  {
    "mcpServers": {
      "gatelog": {
        "command": "gatelog",
        "args": ["mcp"],
        "env": {
          "GATELOG_PROFILE": "portaria",
          "GATELOG_REMOTE_URL": "https://example.supabase.co",
          "GATELOG_API_KEY": "...",
          "GATELOG_OWNER_ID": "..."
        }
      }
    }
  }

Logs never go to stdout; set --log-file to keep them.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "warn")
	if err != nil {
		return err
	}

	// The client persists for the server lifetime.
	client, err := gatelog.New(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return gatelogmcp.NewServer(client).Run()
}

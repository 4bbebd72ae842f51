// Package mcp exposes gatelog over the Model Context Protocol so agents can
// trigger syncs, inspect sync state and read records.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/model"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with gatelog tools.
type Server struct {
	client    *gatelog.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with gatelog tools registered.
func NewServer(client *gatelog.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"gatelog",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "gatelog_sync", Description: "Run one sync cycle against the remote store"},
		{Name: "gatelog_status", Description: "Report pending records per module, queued deletions and the last sync"},
		{Name: "gatelog_settings", Description: "Read or update the station settings"},
		{Name: "gatelog_records", Description: "List the records of one module"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "gatelog_sync":
		return s.handleSync(ctx, args)
	case "gatelog_status":
		return s.handleStatus(ctx, args)
	case "gatelog_settings":
		return s.handleSettings(ctx, args)
	case "gatelog_records":
		return s.handleRecords(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("gatelog_sync",
		mcp.WithDescription("Run one sync cycle: flush queued deletions, push unsynced records, pull recent remote changes. Requires a configured remote store."),
		mcp.WithBoolean("full",
			mcp.Description("Pull every remote record instead of the recent window (default: false)"),
		),
	), s.wrap(s.handleSync))

	s.mcpServer.AddTool(mcp.NewTool("gatelog_status",
		mcp.WithDescription("Report pending (unsynced) records per module, queued deletions, the last successful sync and the last cycle result. Read-only."),
	), s.wrap(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("gatelog_settings",
		mcp.WithDescription("Read the station settings. Pass any field to update it; updated settings sync on the next cycle."),
		mcp.WithString("company_name", mcp.Description("Company shown on reports")),
		mcp.WithString("device_name", mcp.Description("Name of this station")),
		mcp.WithString("theme", mcp.Description("light or dark"), mcp.Enum("light", "dark")),
		mcp.WithString("font_size", mcp.Description("small, medium or large"), mcp.Enum("small", "medium", "large")),
	), s.wrap(s.handleSettings))

	s.mcpServer.AddTool(mcp.NewTool("gatelog_records",
		mcp.WithDescription("List the records of one module, newest first. Read-only."),
		mcp.WithString("module",
			mcp.Description("Module key: entries, breakfast, packages, meters, meter_readings, patrols, shifts, logs"),
			mcp.Required(),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default: 20)")),
		mcp.WithBoolean("unsynced_only", mcp.Description("Only records not yet pushed (default: false)")),
	), s.wrap(s.handleRecords))
}

type handler func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) wrap(h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func (s *Server) handleSync(ctx context.Context, args map[string]any) (*ToolResult, error) {
	run := s.client.Sync
	if full, _ := args["full"].(bool); full {
		run = s.client.Resync
	}

	res, err := run(ctx)
	switch {
	case errors.Is(err, gatelog.ErrNoRemote):
		return &ToolResult{Content: "Sync unavailable: no remote store configured (offline mode)", IsError: true}, nil
	case errors.Is(err, gatelog.ErrOffline):
		return &ToolResult{Content: "Sync skipped: remote store unreachable", IsError: true}, nil
	case errors.Is(err, gatelog.ErrCycleInProgress):
		return &ToolResult{Content: "Sync already in progress"}, nil
	case err != nil && res.ID == "":
		return &ToolResult{Content: fmt.Sprintf("sync failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatCycle(res), IsError: res.Status == model.StatusError}, nil
}

func (s *Server) handleStatus(_ context.Context, _ map[string]any) (*ToolResult, error) {
	report, err := s.client.Status()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("status failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatReport(report)}, nil
}

func (s *Server) handleSettings(_ context.Context, args map[string]any) (*ToolResult, error) {
	settings, err := s.client.Settings().Get()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("read settings failed: %v", err), IsError: true}, nil
	}

	changed := false
	for key, field := range map[string]*string{
		"company_name": &settings.CompanyName,
		"device_name":  &settings.DeviceName,
		"theme":        &settings.Theme,
		"font_size":    &settings.FontSize,
	} {
		if v, ok := args[key].(string); ok && v != "" && v != *field {
			*field = v
			changed = true
		}
	}
	if changed {
		if settings, err = s.client.Settings().Save(settings); err != nil {
			return &ToolResult{Content: fmt.Sprintf("save settings failed: %v", err), IsError: true}, nil
		}
	}
	return &ToolResult{Content: formatSettings(settings, changed)}, nil
}

func (s *Server) handleRecords(_ context.Context, args map[string]any) (*ToolResult, error) {
	key, _ := args["module"].(string)
	if key == "" {
		return &ToolResult{Content: "module is required", IsError: true}, nil
	}
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	unsyncedOnly, _ := args["unsynced_only"].(bool)

	items, err := listModule(s.client, key)
	if errors.Is(err, gatelog.ErrUnknownModule) {
		return &ToolResult{Content: fmt.Sprintf("unknown module: %s", key), IsError: true}, nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("list failed: %v", err), IsError: true}, nil
	}

	var out []listed
	for _, it := range items {
		if unsyncedOnly && it.meta.Synced {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return &ToolResult{Content: formatRecords(key, out, len(items))}, nil
}

// listed is one record with its bookkeeping pulled out for formatting.
type listed struct {
	meta model.Meta
	data any
}

func listModule(c *gatelog.Client, key string) ([]listed, error) {
	switch key {
	case model.ModuleEntries.Key:
		return collect(c.Entries().List())
	case model.ModuleBreakfast.Key:
		return collect(c.Breakfast().List())
	case model.ModulePackages.Key:
		return collect(c.Packages().List())
	case model.ModuleMeters.Key:
		return collect(c.Meters().List())
	case model.ModuleMeterReadings.Key:
		return collect(c.MeterReadings().List())
	case model.ModulePatrols.Key:
		return collect(c.Patrols().List())
	case model.ModuleShifts.Key:
		return collect(c.Shifts().List())
	case model.ModuleLogs.Key:
		return collect(c.Logs().List())
	}
	return nil, gatelog.ErrUnknownModule
}

func collect[T any, P model.Record[T]](items []T, err error) ([]listed, error) {
	if err != nil {
		return nil, err
	}
	out := make([]listed, len(items))
	for i := range items {
		out[i] = listed{meta: *P(&items[i]).Base(), data: items[i]}
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

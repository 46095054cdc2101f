// Package mcpadapter exposes the hub to assistant clients as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
)

const (
	serverName    = "migration-hub"
	serverVersion = "1.0.0"
)

type Deps struct {
	Hub      ports.OverviewService
	Progress ports.ProgressService
	Metrics  ports.MetricsService
	Session  ports.SessionService
	Logger   *slog.Logger
}

type Server struct {
	hub      ports.OverviewService
	progress ports.ProgressService
	metrics  ports.MetricsService
	session  ports.SessionService
	logger   *slog.Logger
	mcp      *server.MCPServer
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:      deps.Hub,
		progress: deps.Progress,
		metrics:  deps.Metrics,
		session:  deps.Session,
		logger:   logger,
		mcp:      server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("hub_status",
		mcp.WithDescription("Checklist progress, roadmap, migration stats and dashboard metrics."),
	), s.status)

	s.mcp.AddTool(mcp.NewTool("checklist_list",
		mcp.WithDescription("Every checklist item with its section, completion flag and uploads."),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("checklist_toggle",
		mcp.WithDescription("Flip the completion flag of one checklist item and save."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checklist item id")),
	), s.toggle)

	s.mcp.AddTool(mcp.NewTool("checklist_set",
		mcp.WithDescription("Set the completion flag of one checklist item and save."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checklist item id")),
		mcp.WithBoolean("done", mcp.Required(), mcp.Description("Whether the item is complete")),
	), s.setDone)

	s.mcp.AddTool(mcp.NewTool("roadmap",
		mcp.WithDescription("Phase states and milestone fills for the current completion percentage."),
	), s.roadmap)

	s.mcp.AddTool(mcp.NewTool("dashboard_refresh",
		mcp.WithDescription("Fetch traffic, search and page audit metrics. Falls back to sample data without a Google session."),
	), s.refresh)
}

// Serve speaks MCP over the given streams until ctx is cancelled or input ends.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp_server_started", "name", serverName)
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) status(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := s.hub.Overview(ctx)
	view.Items = nil
	return jsonResult(view)
}

func (s *Server) listItems(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.progress.Items())
}

func (s *Server) toggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	done, err := s.progress.Toggle(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.saved(ctx, id, done)
}

func (s *Server) setDone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	done, err := req.RequireBool("done")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.progress.SetDone(id, done); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.saved(ctx, id, done)
}

// saved persists after a tool mutation: an assistant session has no explicit
// save step or autosave timer of its own.
func (s *Server) saved(ctx context.Context, id string, done bool) (*mcp.CallToolResult, error) {
	if err := s.progress.Save(ctx); err != nil {
		return nil, err
	}
	return jsonResult(struct {
		ID       string                  `json:"id"`
		Done     bool                    `json:"done"`
		Progress domain.ProgressSnapshot `json:"progress"`
	}{ID: id, Done: done, Progress: s.progress.Snapshot()})
}

func (s *Server) roadmap(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.hub.Roadmap())
}

func (s *Server) refresh(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.metrics.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		Report    domain.RefreshReport     `json:"report"`
		Dashboard domain.DashboardSnapshot `json:"dashboard"`
	}{Report: report, Dashboard: s.metrics.Dashboard()})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}

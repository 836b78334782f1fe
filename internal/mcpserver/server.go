// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes dashboard tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/tilestore"
)

const contractURI = "tiledash://tile-format"

// Server wraps the MCP server with dashboard tools.
type Server struct {
	mcp *server.MCPServer
	svc *dashboard.Service
}

// New creates a new MCP server with all dashboard tools registered.
func New(svc *dashboard.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tiledash",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tiles",
		mcp.WithDescription("List dashboard tiles in display order. Optionally filter by a case-insensitive query on title or content."),
		mcp.WithString("query", mcp.Description("Optional search text")),
	), s.listTiles)

	s.mcp.AddTool(mcp.NewTool("get_tile",
		mcp.WithDescription("Read one tile by id or slug, including its derived due-date state."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Tile id or slug")),
	), s.getTile)

	s.mcp.AddTool(mcp.NewTool("create_tile",
		mcp.WithDescription("Create a new regular tile. Read the contract first via "+
			"the get_tile_contract tool or the "+contractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Tile title (max 200 characters)")),
		mcp.WithString("color", mcp.Description("Hex color like #4f46e5")),
		mcp.WithString("icon", mcp.Description("Icon name, e.g. flask-conical")),
		mcp.WithString("content", mcp.Description("Rich text HTML body")),
		mcp.WithString("dueDate", mcp.Description("Due date as YYYY-MM-DD")),
	), s.createTile)

	s.mcp.AddTool(mcp.NewTool("update_tile",
		mcp.WithDescription("Change the status, progress, priority or due date of a tile."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Tile id")),
		mcp.WithString("status", mcp.Description("Free-form status, e.g. active or done")),
		mcp.WithString("priority", mcp.Description("Free-form priority, e.g. high")),
		mcp.WithString("dueDate", mcp.Description("Due date as YYYY-MM-DD; empty string clears it")),
		mcp.WithNumber("progress", mcp.Description("Progress percentage 0-100")),
	), s.updateTile)

	s.mcp.AddTool(mcp.NewTool("append_note",
		mcp.WithDescription("Append a quick note as a bullet paragraph to a tile."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Tile id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Plain text of the note")),
	), s.appendNote)

	s.mcp.AddTool(mcp.NewTool("overdue_tiles",
		mcp.WithDescription("List tiles whose due date has passed."),
	), s.overdueTiles)

	s.mcp.AddTool(mcp.NewTool("due_soon_tiles",
		mcp.WithDescription("List tiles due today or within the next few days."),
	), s.dueSoonTiles)

	s.mcp.AddTool(mcp.NewTool("reorder_tiles",
		mcp.WithDescription("Apply a new relative order to some regular tiles. Tiles not listed keep their slots."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Comma-separated tile ids in the desired order")),
	), s.reorderTiles)

	s.mcp.AddTool(mcp.NewTool("attach_photo",
		mcp.WithDescription("Attach an image to a tile from an http(s) URL or a base64 data URI."),
		mcp.WithString("tileId", mcp.Required(), mcp.Description("Tile id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("caption", mcp.Description("Optional caption")),
	), s.attachPhoto)

	s.mcp.AddTool(mcp.NewTool("get_tile_contract",
		mcp.WithDescription("Returns the tile format contract. "+
			"Call this before creating or updating tiles."),
	), s.getTileContract)

	// Resource: tile format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Tile Format Contract",
			mcp.WithResourceDescription("Fields, limits and conventions of dashboard tiles."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult turns a service error into a tool error the model can act on.
func errorResult(err error) *mcp.CallToolResult {
	var verrs apperr.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fe.Field + ": " + fe.Message
		}
		return mcp.NewToolResultError("invalid input: " + strings.Join(msgs, "; "))
	}
	return mcp.NewToolResultError(err.Error())
}

type tileSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Progress *int   `json:"progress,omitempty"`
	DueDate  string `json:"dueDate,omitempty"`
}

func summarize(tiles []dashboard.TileDetail) []tileSummary {
	out := make([]tileSummary, len(tiles))
	for i, t := range tiles {
		out[i] = tileSummary{ID: t.ID, Title: t.Title, Status: t.Status, Progress: t.Progress, DueDate: t.DueDate}
	}
	return out
}

func (s *Server) listTiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(summarize(s.svc.ListTiles(ctx, req.GetString("query", "")))), nil
}

func (s *Server) getTile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.GetTile(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		t, err = s.svc.GetTileBySlug(ctx, id)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(t), nil
}

func (s *Server) createTile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.CreateTile(ctx, tilestore.TileInput{
		Title:   title,
		Color:   req.GetString("color", ""),
		Icon:    req.GetString("icon", ""),
		Content: req.GetString("content", ""),
		DueDate: req.GetString("dueDate", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", t.ID, t.Slug)), nil
}

func (s *Server) updateTile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	var p tilestore.TilePatch
	if _, ok := args["status"]; ok {
		v := req.GetString("status", "")
		p.Status = &v
	}
	if _, ok := args["priority"]; ok {
		v := req.GetString("priority", "")
		p.Priority = &v
	}
	if _, ok := args["dueDate"]; ok {
		v := req.GetString("dueDate", "")
		p.DueDate = &v
	}
	if _, ok := args["progress"]; ok {
		v := req.GetInt("progress", 0)
		p.Progress = &v
	}
	t, err := s.svc.UpdateTile(ctx, id, p, "")
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(summarize([]dashboard.TileDetail{t})[0]), nil
}

func (s *Server) appendNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.AppendNote(ctx, id, text); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText("noted: " + id), nil
}

func (s *Server) overdueTiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tiles := s.svc.Overdue(ctx)
	if len(tiles) == 0 {
		return mcp.NewToolResultText("no overdue tiles"), nil
	}
	return jsonResult(summarize(tiles)), nil
}

func (s *Server) dueSoonTiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tiles := s.svc.DueSoon(ctx)
	if len(tiles) == 0 {
		return mcp.NewToolResultText("nothing due soon"), nil
	}
	return jsonResult(summarize(tiles)), nil
}

func (s *Server) reorderTiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	order := s.svc.Reorder(ctx, ids)
	return mcp.NewToolResultText(strings.Join(order, "\n")), nil
}

func (s *Server) getTileContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TileFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     TileFormatContract,
		},
	}, nil
}

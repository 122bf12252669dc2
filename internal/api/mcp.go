package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/reelkit/internal/command"
	"github.com/kalambet/reelkit/internal/dispatch"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/video"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Dispatcher *dispatch.Dispatcher
	Store      VideoStore
	Version    string
}

// NewMCPServer creates an MCP server with the pipeline tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"reelkit",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("reelkit: decompose trending short videos, then imitate one or originate new scripts from the stored analyses."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("decompose",
			mcp.WithDescription("Analyse queue videos by their 1-based index and store the decompositions."),
			mcp.WithString("indices", mcp.Description("Queue indices, e.g. \"1,3,5\""), mcp.Required()),
		),
		mcpDecompose(deps),
	)

	s.AddTool(
		mcp.NewTool("imitate",
			mcp.WithDescription("Decompose one queue video and write a script in its style that promotes the configured product."),
			mcp.WithNumber("index", mcp.Description("1-based queue index"), mcp.Required()),
		),
		mcpImitate(deps),
	)

	s.AddTool(
		mcp.NewTool("originate",
			mcp.WithDescription("Write an original script on a topic using patterns learned from stored decompositions."),
			mcp.WithString("topic", mcp.Description("Script topic"), mcp.Required()),
		),
		mcpOriginate(deps),
	)

	s.AddTool(
		mcp.NewTool("list_queue",
			mcp.WithDescription("List the current candidate video queue with engagement figures."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of videos (default 20)")),
		),
		mcpListQueue(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"reelkit://decompositions",
			"Stored Decompositions",
			mcp.WithResourceDescription("Summary of every stored video decomposition"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDecompositions(deps),
	)

	return s
}

func mcpDecompose(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		indices, err := req.RequireString("indices")
		if err != nil {
			return mcpError("indices is required"), nil
		}

		op, err := command.Parse("decompose " + indices)
		if err != nil || op.Kind != command.Decompose {
			return mcpError(fmt.Sprintf("no queue indices in %q", indices)), nil
		}
		return mcpExecute(ctx, deps, op)
	}
}

func mcpImitate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		index, err := req.RequireInt("index")
		if err != nil {
			return mcpError("index is required"), nil
		}
		return mcpExecute(ctx, deps, command.Operation{Kind: command.Imitate, Index: index})
	}
}

func mcpOriginate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil || strings.TrimSpace(topic) == "" {
			return mcpError("topic is required"), nil
		}
		return mcpExecute(ctx, deps, command.Operation{Kind: command.Originate, Topic: strings.TrimSpace(topic)})
	}
}

func mcpExecute(ctx context.Context, deps MCPDeps, op command.Operation) (*mcp.CallToolResult, error) {
	var q *video.Queue
	if op.Kind != command.Originate {
		loaded, err := deps.Store.LoadQueue()
		if err != nil {
			return mcpError(fmt.Sprintf("loading queue: %v", err)), nil
		}
		q = loaded
	}

	res, err := deps.Dispatcher.Execute(ctx, op, q)
	if err != nil {
		return mcpError(fmt.Sprintf("%s failed: %v", op.Kind, err)), nil
	}

	b, err := json.Marshal(res)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	if !res.OK() {
		return mcpError(string(b)), nil
	}
	return mcpText(string(b)), nil
}

func mcpListQueue(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}

		q, err := deps.Store.LoadQueue()
		if err != nil {
			if errors.Is(err, store.ErrNoQueue) {
				return mcpText("[]"), nil
			}
			return mcpError(fmt.Sprintf("loading queue: %v", err)), nil
		}

		type queueSummary struct {
			Index       int     `json:"index"`
			VideoID     string  `json:"video_id"`
			Title       string  `json:"title"`
			Author      string  `json:"author"`
			EngagementK float64 `json:"engagement_k"`
		}

		n := min(limit, len(q.Videos))
		out := make([]queueSummary, n)
		for i := 0; i < n; i++ {
			e := q.Videos[i]
			out[i] = queueSummary{
				Index:       i + 1,
				VideoID:     e.VideoID,
				Title:       e.Title,
				Author:      e.Author,
				EngagementK: e.Index(),
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal queue: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceDecompositions(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		all, err := deps.Store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to load decompositions: %w", err)
		}

		type decompositionSummary struct {
			VideoID   string `json:"video_id"`
			Title     string `json:"title"`
			CoreTheme string `json:"core_theme"`
			Summary   string `json:"summary"`
		}

		summaries := make([]decompositionSummary, len(all))
		for i, d := range all {
			summary := d.OneLineSummary
			if utf8.RuneCountInString(summary) > 200 {
				runes := []rune(summary)
				summary = string(runes[:200]) + "..."
			}
			summaries[i] = decompositionSummary{
				VideoID:   d.VideoID,
				Title:     d.Video.Title,
				CoreTheme: d.CoreTheme,
				Summary:   summary,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal decompositions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

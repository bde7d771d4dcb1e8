package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/memory"
	"github.com/luvu182/luxbot/pkg/log"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const defaultToolLimit = 10

type Retriever interface {
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]core.MemorySearchResult, error)
	MultiSearch(ctx context.Context, queries []string, opts memory.SearchOptions) ([]core.MemorySearchResult, error)
	SearchTasksByAssignee(ctx context.Context, groupID, assignee string, limit int) ([]core.MemorySearchResult, error)
	SearchUpcomingDeadlines(ctx context.Context, groupID string, limit int) ([]core.MemorySearchResult, error)
	RecentExtractedInfo(ctx context.Context, groupID string, limit int) ([]core.MemorySearchResult, error)
}

type Extractor interface {
	ExtractInfo(ctx context.Context, message string, ec *core.ExtractionContext) []core.ExtractedItem
	ExtractBatch(ctx context.Context, messages []string, ec *core.ExtractionContext) [][]core.ExtractedItem
}

type Writer interface {
	StoreMemory(ctx context.Context, groupID, userID, content string) (string, error)
}

// Server exposes group memory to MCP clients over stdio.
type Server struct {
	mcp       *mcpserver.MCPServer
	retriever Retriever
	extractor Extractor
	writer    Writer
}

func NewServer(retriever Retriever, extractor Extractor, writer Writer) *Server {
	s := &Server{
		mcp: mcpserver.NewMCPServer(
			core.LuxName,
			core.LuxVersion,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
		retriever: retriever,
		extractor: extractor,
		writer:    writer,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	groupID := mcpproto.WithString("group_id", mcpproto.Required(), mcpproto.Description("Chat group identifier"))
	limit := mcpproto.WithNumber("limit", mcpproto.Description("Maximum number of results"), mcpproto.Min(1), mcpproto.Max(50))

	s.mcp.AddTool(mcpproto.NewTool("search_memory",
		mcpproto.WithDescription("Semantic search over the memories stored for a group"),
		mcpproto.WithString("query", mcpproto.Required(), mcpproto.Description("Natural-language query")),
		groupID,
		mcpproto.WithString("type", mcpproto.Description("Restrict to one item type"),
			mcpproto.Enum(itemTypes()...)),
		limit,
		mcpproto.WithNumber("min_similarity", mcpproto.Description("Cosine similarity threshold"), mcpproto.Min(0), mcpproto.Max(1)),
	), s.handleSearch)

	s.mcp.AddTool(mcpproto.NewTool("multi_search_memory",
		mcpproto.WithDescription("Run several queries and merge the results, best score per memory"),
		mcpproto.WithArray("queries", mcpproto.Required(), mcpproto.WithStringItems()),
		groupID,
		limit,
	), s.handleMultiSearch)

	s.mcp.AddTool(mcpproto.NewTool("recent_memory",
		mcpproto.WithDescription("Most recently stored memories of a group"),
		groupID,
		limit,
	), s.handleRecent)

	s.mcp.AddTool(mcpproto.NewTool("tasks_by_assignee",
		mcpproto.WithDescription("Tasks assigned to a group member"),
		groupID,
		mcpproto.WithString("assignee", mcpproto.Required()),
		limit,
	), s.handleTasks)

	s.mcp.AddTool(mcpproto.NewTool("upcoming_deadlines",
		mcpproto.WithDescription("Deadlines recorded for a group"),
		groupID,
		limit,
	), s.handleDeadlines)

	s.mcp.AddTool(mcpproto.NewTool("extract_info",
		mcpproto.WithDescription("Extract structured items from chat messages without storing them. Pass message or messages"),
		mcpproto.WithString("message", mcpproto.Description("A single message")),
		mcpproto.WithArray("messages", mcpproto.Description("Several unrelated messages, extracted independently"), mcpproto.WithStringItems()),
		mcpproto.WithString("sender_name"),
		mcpproto.WithString("group_name"),
	), s.handleExtract)

	s.mcp.AddTool(mcpproto.NewTool("remember",
		mcpproto.WithDescription("Store a note as an important memory of the group"),
		groupID,
		mcpproto.WithString("content", mcpproto.Required()),
		mcpproto.WithString("user_id"),
	), s.handleRemember)
}

// Serve blocks until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("starting mcp stdio server")

	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(logger, "", 0))

	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	opts, errResult := searchOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	if t := req.GetString("type", ""); t != "" {
		it := core.ItemType(t)
		if !it.Valid() {
			return mcpproto.NewToolResultError(fmt.Sprintf("unknown type %q", t)), nil
		}
		opts.Type = it
	}
	if args := req.GetArguments(); args["min_similarity"] != nil {
		opts.MinSimilarity = memory.Threshold(req.GetFloat("min_similarity", memory.DefaultMinSimilarity))
	}

	results, err := s.retriever.Search(ctx, query, opts)
	return s.results(ctx, "search_memory", results, err)
}

func (s *Server) handleMultiSearch(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	queries, err := req.RequireStringSlice("queries")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	opts, errResult := searchOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	results, err := s.retriever.MultiSearch(ctx, queries, opts)
	return s.results(ctx, "multi_search_memory", results, err)
}

func (s *Server) handleRecent(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	opts, errResult := searchOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	results, err := s.retriever.RecentExtractedInfo(ctx, opts.GroupID, opts.Limit)
	return s.results(ctx, "recent_memory", results, err)
}

func (s *Server) handleTasks(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	assignee, err := req.RequireString("assignee")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	opts, errResult := searchOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	results, err := s.retriever.SearchTasksByAssignee(ctx, opts.GroupID, assignee, opts.Limit)
	return s.results(ctx, "tasks_by_assignee", results, err)
}

func (s *Server) handleDeadlines(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	opts, errResult := searchOptions(req)
	if errResult != nil {
		return errResult, nil
	}

	results, err := s.retriever.SearchUpcomingDeadlines(ctx, opts.GroupID, opts.Limit)
	return s.results(ctx, "upcoming_deadlines", results, err)
}

func (s *Server) handleExtract(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	ec := &core.ExtractionContext{
		SenderName: req.GetString("sender_name", ""),
		GroupName:  req.GetString("group_name", ""),
	}

	if message := req.GetString("message", ""); message != "" {
		return jsonResult(struct {
			Items []core.ExtractedItem `json:"items"`
		}{Items: s.extractor.ExtractInfo(ctx, message, ec)})
	}

	messages := req.GetStringSlice("messages", nil)
	if len(messages) == 0 {
		return mcpproto.NewToolResultError("message or messages is required"), nil
	}
	return jsonResult(struct {
		Batches [][]core.ExtractedItem `json:"batches"`
	}{Batches: s.extractor.ExtractBatch(ctx, messages, ec)})
}

func (s *Server) handleRemember(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	groupID, err := req.RequireString("group_id")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	id, err := s.writer.StoreMemory(ctx, groupID, req.GetString("user_id", ""), content)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("tool", "remember").Msg("tool call failed")
		return mcpproto.NewToolResultErrorFromErr("remember failed", err), nil
	}
	return mcpproto.NewToolResultText(id), nil
}

// results turns a retriever outcome into a tool result. Failures are reported
// to the client as tool errors, not protocol errors.
func (s *Server) results(ctx context.Context, tool string, results []core.MemorySearchResult, err error) (*mcpproto.CallToolResult, error) {
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("tool", tool).Msg("tool call failed")
		return mcpproto.NewToolResultErrorFromErr(tool+" failed", err), nil
	}
	if results == nil {
		results = []core.MemorySearchResult{}
	}

	return jsonResult(struct {
		Results []core.MemorySearchResult `json:"results"`
	}{Results: results})
}

func jsonResult[T any](v T) (*mcpproto.CallToolResult, error) {
	res, err := mcpproto.NewToolResultJSON(v)
	if err != nil {
		return mcpproto.NewToolResultErrorFromErr("encode result", err), nil
	}
	return res, nil
}

func searchOptions(req mcpproto.CallToolRequest) (memory.SearchOptions, *mcpproto.CallToolResult) {
	groupID, err := req.RequireString("group_id")
	if err != nil {
		return memory.SearchOptions{}, mcpproto.NewToolResultError(err.Error())
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return memory.SearchOptions{}, mcpproto.NewToolResultError("group_id cannot be empty")
	}
	return memory.SearchOptions{
		GroupID: groupID,
		Limit:   req.GetInt("limit", defaultToolLimit),
	}, nil
}

func itemTypes() []string {
	return []string{
		string(core.ItemTask),
		string(core.ItemDecision),
		string(core.ItemDeadline),
		string(core.ItemImportant),
		string(core.ItemGeneral),
	}
}

package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/memory"
)

const defaultListLimit = 5

type Retriever interface {
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]core.MemorySearchResult, error)
	MultiSearch(ctx context.Context, queries []string, opts memory.SearchOptions) ([]core.MemorySearchResult, error)
	SearchTasksByAssignee(ctx context.Context, groupID, assignee string, limit int) ([]core.MemorySearchResult, error)
	SearchUpcomingDeadlines(ctx context.Context, groupID string, limit int) ([]core.MemorySearchResult, error)
	RecentExtractedInfo(ctx context.Context, groupID string, limit int) ([]core.MemorySearchResult, error)
}

type SearchCommand struct {
	retriever Retriever
	formatter *ResponseFormatter
}

func NewSearchCommand(r Retriever) *SearchCommand {
	return &SearchCommand{retriever: r, formatter: NewResponseFormatter()}
}

func (c *SearchCommand) Name() string { return "search" }

func (c *SearchCommand) Description() string { return "Tìm trong trí nhớ của nhóm" }

// Execute treats "|" as a separator between independent queries.
func (c *SearchCommand) Execute(ctx context.Context, groupID string, args []string) (string, error) {
	if len(args) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Tìm kiếm"),
			c.formatter.Usage("/search <câu hỏi>\n/search họp | deadline"),
		), nil
	}

	var queries []string
	for _, q := range strings.Split(strings.Join(args, " "), "|") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}

	opts := memory.SearchOptions{GroupID: groupID, Limit: defaultListLimit}
	var (
		results []core.MemorySearchResult
		err     error
	)
	if len(queries) == 1 {
		results, err = c.retriever.Search(ctx, queries[0], opts)
	} else {
		results, err = c.retriever.MultiSearch(ctx, queries, opts)
	}
	if err != nil {
		return "", err
	}
	return c.formatter.Memories("Kết quả tìm kiếm", "Không tìm thấy thông tin phù hợp.", results), nil
}

type TasksCommand struct {
	retriever Retriever
	formatter *ResponseFormatter
}

func NewTasksCommand(r Retriever) *TasksCommand {
	return &TasksCommand{retriever: r, formatter: NewResponseFormatter()}
}

func (c *TasksCommand) Name() string { return "tasks" }

func (c *TasksCommand) Description() string { return "Nhiệm vụ của một thành viên" }

func (c *TasksCommand) Execute(ctx context.Context, groupID string, args []string) (string, error) {
	if len(args) == 0 {
		return c.formatter.Usage("/tasks <tên>"), nil
	}
	assignee := strings.Join(args, " ")
	results, err := c.retriever.SearchTasksByAssignee(ctx, groupID, assignee, defaultListLimit)
	if err != nil {
		return "", err
	}
	return c.formatter.Memories("Nhiệm vụ của "+assignee, "Chưa có nhiệm vụ nào.", results), nil
}

type DeadlinesCommand struct {
	retriever Retriever
	formatter *ResponseFormatter
}

func NewDeadlinesCommand(r Retriever) *DeadlinesCommand {
	return &DeadlinesCommand{retriever: r, formatter: NewResponseFormatter()}
}

func (c *DeadlinesCommand) Name() string { return "deadlines" }

func (c *DeadlinesCommand) Description() string { return "Các thời hạn sắp tới" }

func (c *DeadlinesCommand) Execute(ctx context.Context, groupID string, _ []string) (string, error) {
	results, err := c.retriever.SearchUpcomingDeadlines(ctx, groupID, defaultListLimit)
	if err != nil {
		return "", err
	}
	return c.formatter.Memories("Thời hạn sắp tới", "Chưa có thời hạn nào.", results), nil
}

type MemoriesCommand struct {
	retriever Retriever
	formatter *ResponseFormatter
}

func NewMemoriesCommand(r Retriever) *MemoriesCommand {
	return &MemoriesCommand{retriever: r, formatter: NewResponseFormatter()}
}

func (c *MemoriesCommand) Name() string { return "memories" }

func (c *MemoriesCommand) Description() string { return "Thông tin được ghi nhớ gần đây" }

func (c *MemoriesCommand) Execute(ctx context.Context, groupID string, args []string) (string, error) {
	limit := defaultListLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "", fmt.Errorf("%w: số lượng không hợp lệ %q", core.ErrValidation, args[0])
		}
		limit = n
	}

	results, err := c.retriever.RecentExtractedInfo(ctx, groupID, limit)
	if err != nil {
		return "", err
	}
	return c.formatter.Memories("Ghi nhớ gần đây", "Chưa có thông tin nào.", results), nil
}

type Deleter interface {
	Delete(ctx context.Context, id string) error
}

type ForgetCommand struct {
	store     Deleter
	formatter *ResponseFormatter
}

func NewForgetCommand(store Deleter) *ForgetCommand {
	return &ForgetCommand{store: store, formatter: NewResponseFormatter()}
}

func (c *ForgetCommand) Name() string { return "forget" }

func (c *ForgetCommand) Description() string { return "Xoá một ghi nhớ theo id" }

func (c *ForgetCommand) Execute(ctx context.Context, _ string, args []string) (string, error) {
	if len(args) != 1 {
		return c.formatter.Usage("/forget <id>"), nil
	}
	if err := c.store.Delete(ctx, args[0]); err != nil {
		return "", err
	}
	return c.formatter.Success("Đã xoá " + args[0]), nil
}

type Rememberer interface {
	StoreMemory(ctx context.Context, groupID, userID, content string) (string, error)
}

type RememberCommand struct {
	writer    Rememberer
	formatter *ResponseFormatter
}

func NewRememberCommand(w Rememberer) *RememberCommand {
	return &RememberCommand{writer: w, formatter: NewResponseFormatter()}
}

func (c *RememberCommand) Name() string { return "remember" }

func (c *RememberCommand) Description() string { return "Ghi nhớ một thông tin quan trọng" }

func (c *RememberCommand) Execute(ctx context.Context, groupID string, args []string) (string, error) {
	if len(args) == 0 {
		return c.formatter.Usage("/remember <nội dung>"), nil
	}
	id, err := c.writer.StoreMemory(ctx, groupID, "", strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	return c.formatter.Combine(
		c.formatter.Success("Đã ghi nhớ"),
		c.formatter.Label("ID", id),
	), nil
}

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/assistant"
)

type Summarizer interface {
	Summarize(ctx context.Context, groupID string) (string, error)
}

type SummaryCommand struct {
	summarizer Summarizer
	formatter  *ResponseFormatter
}

func NewSummaryCommand(s Summarizer) *SummaryCommand {
	return &SummaryCommand{summarizer: s, formatter: NewResponseFormatter()}
}

func (c *SummaryCommand) Name() string { return "summary" }

func (c *SummaryCommand) Description() string { return "Tóm tắt cuộc trò chuyện gần đây" }

func (c *SummaryCommand) Execute(ctx context.Context, groupID string, _ []string) (string, error) {
	text, err := c.summarizer.Summarize(ctx, groupID)
	if err != nil {
		return "", err
	}
	return c.formatter.Combine(c.formatter.Info("Tóm tắt"), text), nil
}

type MetricsSource interface {
	Metrics() assistant.Metrics
}

// ModelNamer reports the model behind each task.
type ModelNamer interface {
	ModelFor(task core.Task) string
}

type StatsCommand struct {
	metrics   MetricsSource
	models    ModelNamer
	formatter *ResponseFormatter
}

func NewStatsCommand(m MetricsSource, models ModelNamer) *StatsCommand {
	return &StatsCommand{metrics: m, models: models, formatter: NewResponseFormatter()}
}

func (c *StatsCommand) Name() string { return "stats" }

func (c *StatsCommand) Description() string { return "Thống kê xử lý và mô hình đang dùng" }

func (c *StatsCommand) Execute(_ context.Context, _ string, _ []string) (string, error) {
	m := c.metrics.Metrics()

	last := "-"
	if !m.LastProcessedAt.IsZero() {
		last = m.LastProcessedAt.Format(time.DateTime)
	}

	sections := []string{
		c.formatter.Info("Thống kê"),
		c.formatter.Label("Đã trả lời", fmt.Sprint(m.Processed)),
		c.formatter.Label("Thất bại", fmt.Sprint(m.Failed)),
		c.formatter.Label("Dùng dự phòng", fmt.Sprint(m.Fallbacks)),
		c.formatter.Label("Thử lại", fmt.Sprint(m.Retries)),
		c.formatter.Label("Độ trễ TB", fmt.Sprintf("%.0f ms", m.AvgLatencyMs)),
		c.formatter.Label("Lần cuối", last),
	}
	if c.models != nil {
		sections = append(sections,
			c.formatter.Label("Mô hình trả lời", c.models.ModelFor(core.TaskQuery)),
			c.formatter.Label("Mô hình trích xuất", c.models.ModelFor(core.TaskExtraction)),
		)
	}
	return c.formatter.Combine(sections...), nil
}

type HelpCommand struct {
	list      func() []core.Command
	formatter *ResponseFormatter
}

// NewHelpCommand takes a lister so it can describe commands registered
// after it, itself included.
func NewHelpCommand(list func() []core.Command) *HelpCommand {
	return &HelpCommand{list: list, formatter: NewResponseFormatter()}
}

func (c *HelpCommand) Name() string { return "help" }

func (c *HelpCommand) Description() string { return "Danh sách lệnh" }

func (c *HelpCommand) Execute(_ context.Context, _ string, _ []string) (string, error) {
	var items []string
	for _, cmd := range c.list() {
		items = append(items, fmt.Sprintf("/%s - %s", cmd.Name(), cmd.Description()))
	}
	return c.formatter.Combine(c.formatter.Info("Các lệnh"), c.formatter.List(items)), nil
}

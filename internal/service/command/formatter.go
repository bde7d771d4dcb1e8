package command

import (
	"fmt"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
)

type ResponseFormatter struct{}

func NewResponseFormatter() *ResponseFormatter {
	return &ResponseFormatter{}
}

func (f *ResponseFormatter) Info(title string) string {
	return fmt.Sprintf("⚙️ **%s**\n", title)
}

func (f *ResponseFormatter) Success(message string) string {
	return fmt.Sprintf("✅ **%s**\n", message)
}

func (f *ResponseFormatter) Error(command string, err error) string {
	return fmt.Sprintf("❌ **Lỗi /%s**\n\n%s\n", command, err.Error())
}

func (f *ResponseFormatter) Label(label, value string) string {
	return fmt.Sprintf("**%s**  ›  `%s`\n", label, value)
}

func (f *ResponseFormatter) Usage(command string) string {
	return fmt.Sprintf("**Cách dùng**:\n```\n%s\n```\n", command)
}

func (f *ResponseFormatter) List(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("› %s\n", item))
	}
	return sb.String()
}

func (f *ResponseFormatter) Combine(sections ...string) string {
	return strings.Join(sections, "\n")
}

// Memories renders search results, or empty when there are none.
func (f *ResponseFormatter) Memories(title, empty string, results []core.MemorySearchResult) string {
	if len(results) == 0 {
		return f.Info(title) + "\n" + empty
	}

	items := make([]string, 0, len(results))
	for _, r := range results {
		line := fmt.Sprintf("[%s] %s", r.Type, r.Content)
		if r.DueDate != nil {
			line += fmt.Sprintf(" (hạn %s)", r.DueDate.Format("02/01/2006"))
		}
		if r.Similarity < 1 {
			line += fmt.Sprintf(" · %.0f%%", r.Similarity*100)
		}
		line += fmt.Sprintf(" `%s`", r.ID)
		items = append(items, line)
	}
	return f.Combine(f.Info(title), f.List(items))
}

package memory

import (
	"fmt"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
)

var typeLabels = map[core.ItemType]string{
	core.ItemTask:      "Nhiệm vụ",
	core.ItemDecision:  "Quyết định",
	core.ItemDeadline:  "Thời hạn",
	core.ItemImportant: "Quan trọng",
	core.ItemGeneral:   "Thông tin",
}

// FormatContext renders search results for a prompt, grouped under
// headings by type in first-seen order.
func FormatContext(results []core.MemorySearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var order []core.ItemType
	grouped := make(map[core.ItemType][]string)
	for _, r := range results {
		if _, ok := grouped[r.Type]; !ok {
			order = append(order, r.Type)
		}
		grouped[r.Type] = append(grouped[r.Type], formatLine(r))
	}

	var sb strings.Builder
	for _, t := range order {
		label, ok := typeLabels[t]
		if !ok {
			label = string(t)
		}
		fmt.Fprintf(&sb, "\n### %s\n", label)
		sb.WriteString(strings.Join(grouped[t], "\n"))
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String())
}

func formatLine(r core.MemorySearchResult) string {
	line := "- " + r.Content
	if r.DueDate != nil {
		line += fmt.Sprintf(" (hạn: %s)", r.DueDate.Format("02/01/2006"))
	}
	return line
}

package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/tokens"
)

var vietnameseWeekdays = [...]string{
	time.Sunday:    "Chủ nhật",
	time.Monday:    "Thứ Hai",
	time.Tuesday:   "Thứ Ba",
	time.Wednesday: "Thứ Tư",
	time.Thursday:  "Thứ Năm",
	time.Friday:    "Thứ Sáu",
	time.Saturday:  "Thứ Bảy",
}

const extractionSchema = `Trả về DUY NHẤT một JSON theo định dạng:
{"items":[{"type":"task|decision|deadline|important|general","content":"...","summary":"...","assignee":"...","dueDate":"YYYY-MM-DD","confidence":0.0}]}
- confidence nằm trong khoảng 0 đến 1.
- Bỏ qua lời chào hỏi và tán gẫu.
- Nếu không có thông tin đáng lưu, trả về {"items":[]}.`

// buildExtractionPrompt renders the user turn for an extraction request.
// Context messages are trimmed oldest first to fit budget tokens.
func buildExtractionPrompt(message string, ec *core.ExtractionContext, now time.Time, budget int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ngày hiện tại: %s (%s)\n", now.Format("2006-01-02"), vietnameseWeekdays[now.Weekday()])

	if ec != nil {
		if ec.GroupName != "" {
			fmt.Fprintf(&b, "Nhóm: %s\n", ec.GroupName)
		}
		if ec.SenderName != "" {
			fmt.Fprintf(&b, "Người gửi: %s\n", ec.SenderName)
		}

		lines := make([]string, 0, len(ec.RecentMessages))
		for _, m := range ec.RecentMessages {
			lines = append(lines, formatContextLine(m))
		}
		if kept := tokens.KeepNewest(lines, budget); len(kept) > 0 {
			b.WriteString("\nNgữ cảnh gần đây:\n")
			for _, l := range kept {
				b.WriteString(l)
				b.WriteByte('\n')
			}
		}
	}

	b.WriteString("\nTin nhắn cần phân tích:\n")
	b.WriteString(strings.TrimSpace(message))
	b.WriteString("\n\n")
	b.WriteString(extractionSchema)

	return b.String()
}

func formatContextLine(m core.ContextMessage) string {
	if m.CreatedAt.IsZero() {
		return fmt.Sprintf("%s: %s", m.SenderName, m.Content)
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Format("15:04"), m.SenderName, m.Content)
}

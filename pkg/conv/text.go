package conv

import (
	"strings"

	"github.com/inbucket/html2text"
)

// HTMLToText flattens HTML into plain text, keeping link targets.
func HTMLToText(html string) string {
	text, err := html2text.FromString(html, html2text.Options{
		PrettyTables: false,
		OmitLinks:    false,
	})
	if err != nil {
		return html
	}
	return strings.TrimSpace(text)
}

package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		// The BPE ranks are downloaded on first use. Offline we fall back to estimating.
		enc, err := tiktoken.GetEncoding(encodingName)
		if err == nil {
			tk = enc
		}
	})
	return tk
}

// Count returns the cl100k token count of text, or a rune based estimate
// when the encoding is unavailable.
func Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := getTokenizer(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimate(text)
}

// Vietnamese averages close to three runes per token.
func estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 2) / 3
}

// KeepNewest returns the longest suffix of lines that fits in budget tokens.
// Order is preserved.
func KeepNewest(lines []string, budget int) []string {
	if budget <= 0 {
		return nil
	}

	used := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		n := Count(lines[i])
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	return lines[start:]
}

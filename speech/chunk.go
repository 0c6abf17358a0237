package speech

import (
	"strings"
	"unicode/utf8"
)

// ChunkText 按词切分文本，每段不超过 maxLen 个字符。
// 短于 maxLen 的文本原样返回；单个超长词独占一段。
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) < maxLen {
		return []string{text}
	}

	var chunks []string
	var current []string
	length := 0
	for _, word := range strings.Fields(text) {
		wl := utf8.RuneCountInString(word)
		next := length + wl
		if len(current) > 0 {
			next++ // 空格
		}
		if next > maxLen && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			length = wl
			continue
		}
		current = append(current, word)
		length = next
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// internal/session/normalize.go
package session

import (
	"regexp"
	"strings"
)

// 正文规整用的正则
var (
	quotedSpanRegex = regexp.MustCompile(`"[^"\n]+"`)
	blankRunRegex   = regexp.MustCompile(`\n\s*\n`)
)

// NormalizeContent 规整场景正文
//
// 处理三件事：还原转义的引号、让对话独立成段、折叠连续空行。
// 对已规整的文本重复调用不会产生进一步变化。
func NormalizeContent(text string) string {
	if text == "" {
		return ""
	}

	// 后端正文中偶尔残留字面量形式的 \" 转义
	result := unescapeQuotes(text)

	// 引号包裹的对话片段独立成段
	result = quotedSpanRegex.ReplaceAllStringFunc(result, func(span string) string {
		return "\n\n" + span + "\n\n"
	})

	// 连续空行折叠为一个段落分隔
	result = blankRunRegex.ReplaceAllString(result, "\n\n")

	return strings.TrimSpace(result)
}

// unescapeQuotes 把字面量 \" 还原为 "
//
// 前面紧跟另一个反斜杠的不算转义引号（\\" 保持原样），
// 否则重复规整会每次都吃掉一个反斜杠。
func unescapeQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] == '"' &&
			(i == 0 || text[i-1] != '\\') {
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

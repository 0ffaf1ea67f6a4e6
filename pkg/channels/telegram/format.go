package telegram

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reCodeBlock  = regexp.MustCompile("```[\\w]*\\n?([\\s\\S]*?)```")
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reQuote      = regexp.MustCompile(`(?m)^>\s*(.*)$`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reBoldStar   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnder  = regexp.MustCompile(`__(.+?)__`)
	reItalic     = regexp.MustCompile(`(^|[\s(])_([^_\n]+)_`)
	reStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// markdownToTelegramHTML renders the subset of Markdown chat models usually
// produce into Telegram's HTML parse mode.
func markdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	text, blocks := extractPlaceholders(text, reCodeBlock, "CB")
	text, inline := extractPlaceholders(text, reInlineCode, "IC")

	text = reHeading.ReplaceAllString(text, "$1")
	text = reQuote.ReplaceAllString(text, "$1")
	text = escapeHTML(text)
	text = reLink.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = reBoldStar.ReplaceAllString(text, "<b>$1</b>")
	text = reBoldUnder.ReplaceAllString(text, "<b>$1</b>")
	text = reItalic.ReplaceAllString(text, "$1<i>$2</i>")
	text = reStrike.ReplaceAllString(text, "<s>$1</s>")
	text = reBullet.ReplaceAllString(text, "• ")

	for i, code := range inline {
		text = strings.ReplaceAll(text, placeholder("IC", i), "<code>"+escapeHTML(code)+"</code>")
	}
	for i, code := range blocks {
		text = strings.ReplaceAll(text, placeholder("CB", i), "<pre><code>"+escapeHTML(code)+"</code></pre>")
	}
	return text
}

func extractPlaceholders(text string, re *regexp.Regexp, tag string) (string, []string) {
	var codes []string
	text = re.ReplaceAllStringFunc(text, func(m string) string {
		sub := re.FindStringSubmatch(m)
		codes = append(codes, sub[1])
		return placeholder(tag, len(codes)-1)
	})
	return text, codes
}

func placeholder(tag string, i int) string {
	return fmt.Sprintf("\x00%s%d\x00", tag, i)
}

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func runeLen(text string) int {
	return len([]rune(text))
}

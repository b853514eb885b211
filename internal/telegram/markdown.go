package telegram

import (
	"strings"
	"unicode/utf8"

	"github.com/set-night/visionchat/internal/domain"
)

// SplitMessage splits text into chunks of at most maxLen runes, preferring
// to break after a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > maxLen {
		splitAt := maxLen
		if nl := lastIndexRune(runes[:maxLen], '\n'); nl > maxLen/2 {
			splitAt = nl + 1
		}
		parts = append(parts, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// FixMarkdown closes a dangling code fence or inline code span so model
// output can be sent with Markdown parsing.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}

	var b strings.Builder
	inFence, inInline := false, false
	for i := 0; i < len(text); i++ {
		if strings.HasPrefix(text[i:], "```") {
			if inInline {
				b.WriteByte('`')
				inInline = false
			}
			inFence = !inFence
			b.WriteString("```")
			i += 2
			continue
		}
		if !inFence && text[i] == '`' {
			inInline = !inInline
		}
		b.WriteByte(text[i])
	}
	if inInline {
		b.WriteByte('`')
	}
	return b.String()
}

// RenderMessage formats one timeline entry for a chat reply.
func RenderMessage(m domain.Message) string {
	var b strings.Builder
	if m.Role == domain.RoleUser {
		b.WriteString("🧑 ")
	} else {
		b.WriteString("🤖 ")
	}
	if m.Image != nil {
		name := m.Image.Name
		if name == "" {
			name = "image"
		}
		b.WriteString("[🖼 " + name + "] ")
	}
	b.WriteString(m.Text)
	return b.String()
}

// RenderTimeline formats a whole timeline, oldest first.
func RenderTimeline(msgs []domain.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, RenderMessage(m))
	}
	return strings.Join(lines, "\n\n")
}

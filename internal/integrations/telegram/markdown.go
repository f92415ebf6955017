package telegram

import "strings"

// markdownEscaper covers the special characters of the legacy Markdown parse
// mode, which is what every rendered relay message uses.
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// EscapeMarkdown escapes user-controlled text so it can be interpolated into
// a Markdown-formatted message without altering the surrounding structure.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

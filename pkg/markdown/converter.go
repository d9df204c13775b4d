// Package markdown renders model output as Telegram-compatible HTML.
// Generative replies occasionally come back with markdown emphasis even
// when the prompt asks for plain sentences; sending them through here keeps
// the formatting instead of leaking asterisks into the chat.
package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphRe  = regexp.MustCompile(`<p>(.*?)</p>`)
	fencedCodeRe = regexp.MustCompile(`<pre><code(?: class="[^"]*")?>`)
	anyTagRe     = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)(?:\s[^>]*)?>`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
)

// Telegram accepts only a small HTML subset; everything else is stripped.
var telegramTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"code": true, "pre": true, "a": true, "br": true,
}

// ToTelegramHTML converts markdown text to the HTML subset Telegram's
// sendMessage accepts.
func ToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(text), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	html = paragraphRe.ReplaceAllString(html, "$1\n")
	html = strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<ul>", "", "</ul>", "",
		"<ol>", "", "</ol>", "",
		"<li>", "• ", "</li>", "\n",
	).Replace(html)
	html = fencedCodeRe.ReplaceAllString(html, "<pre>")
	html = strings.ReplaceAll(html, "</code></pre>", "</pre>")

	html = anyTagRe.ReplaceAllStringFunc(html, func(tag string) string {
		name := strings.ToLower(strings.Trim(tag, "</> "))
		if i := strings.IndexAny(name, " \t"); i >= 0 {
			name = name[:i]
		}
		if telegramTags[name] {
			return tag
		}
		return ""
	})

	html = blankRunsRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}

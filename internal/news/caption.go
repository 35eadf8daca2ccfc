package news

import (
	"strings"
	"unicode/utf8"

	"gamenewsbot/pkg/tgui"
)

const maxTitleRunes = 256

// Formatter builds the HTML caption of a news post.
type Formatter struct {
	ReadMoreLabel string
	SupportPrefix string
	SupportLabel  string
	SupportLink   string
}

// Caption renders title, summary, the article link and the support line.
// The summary is shortened so the whole caption stays within limit runes;
// markup around it is never cut.
func (f Formatter) Caption(title, summary, link string, limit int) string {
	head := tgui.B(tgui.TruncRunes(strings.TrimSpace(title), maxTitleRunes)).String()
	tail := tgui.Link(f.readMore(), link).String()
	if f.SupportLink != "" {
		support := tgui.Link(f.SupportLabel, f.SupportLink).String()
		if f.SupportPrefix != "" {
			support = tgui.Esc(f.SupportPrefix).String() + ": " + support
		}
		tail += "\n\n" + support
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return head + "\n\n" + tail
	}

	body := tgui.Esc(summary).String()
	full := head + "\n\n" + body + "\n\n" + tail
	if limit <= 0 || utf8.RuneCountInString(full) <= limit {
		return full
	}

	budget := limit - utf8.RuneCountInString(head+"\n\n"+"\n\n"+tail)
	if budget <= 1 {
		return head + "\n\n" + tail
	}
	// Shrink the plain summary until its escaped form fits the budget.
	n := budget - 1
	for n > 0 {
		body = tgui.Esc(tgui.TruncRunes(summary, n)).String()
		if utf8.RuneCountInString(body) <= budget {
			return head + "\n\n" + body + "\n\n" + tail
		}
		n -= utf8.RuneCountInString(body) - budget
	}
	return head + "\n\n" + tail
}

func (f Formatter) readMore() string {
	if f.ReadMoreLabel == "" {
		return "Читать полностью"
	}
	return f.ReadMoreLabel
}

package chat

import (
	"bytes"
	"html"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in message content is not rendered. Fenced code is highlighted
// with inline styles.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.Linkify,
		extension.Strikethrough,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Entry is one message ready for display.
type Entry struct {
	ID        string
	Sender    string
	Mine      bool
	HTML      string
	Text      string
	CreatedAt time.Time
	Time      string
}

// Render returns the log sorted by creation time, each message rendered from
// markdown. Messages sent by selfID are marked Mine and attributed to "You".
func (l *Log) Render(selfID string) []Entry {
	msgs := l.ByCreation()
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := Entry{
			ID:        m.ID,
			Sender:    m.SenderName,
			Mine:      m.SenderID == selfID,
			Text:      m.Content,
			CreatedAt: m.CreatedAt,
			Time:      m.CreatedAt.Local().Format("3:04 PM"),
		}
		if e.Mine {
			e.Sender = "You"
		} else if e.Sender == "" {
			e.Sender = m.SenderID
		}
		e.HTML = renderMarkdown(m.Content)
		out = append(out, e)
	}
	return out
}

func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return buf.String()
}

package app

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/layout"
)

// console serializes terminal output from the loops of one peer.
type console struct {
	mu       sync.Mutex
	w        io.Writer
	lastPlan string
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// printPlan writes p unless it renders the same as the previous plan.
func (c *console) printPlan(p layout.RenderPlan) {
	s := formatPlan(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.lastPlan {
		return
	}
	c.lastPlan = s
	io.WriteString(c.w, s)
}

func (c *console) printMessage(m chat.Message, selfID string) {
	who := m.SenderName
	if m.SenderID == selfID {
		who = "You"
	} else if who == "" {
		who = m.SenderID
	}
	c.printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("3:04 PM"), who, m.Content)
}

// printNewMessages writes the messages whose ids are not in seen and adds
// them to it.
func (c *console) printNewMessages(msgs []chat.Message, selfID string, seen map[string]struct{}) {
	for _, m := range msgs {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		c.printMessage(m, selfID)
	}
}

func formatPlan(p layout.RenderPlan) string {
	var b strings.Builder
	switch p.Mode {
	case layout.ModeGrid:
		fmt.Fprintf(&b, "── grid %dx%d", p.Shape.Cols, p.Shape.Rows)
	default:
		fmt.Fprintf(&b, "── %s", p.Mode)
	}
	if p.PageCount > 1 {
		fmt.Fprintf(&b, "  page %d/%d", p.Page+1, p.PageCount)
	}
	b.WriteString("\n")

	if p.HeroTile != nil {
		kind := "camera"
		if p.HeroScreen {
			kind = "screen"
		}
		fmt.Fprintf(&b, "   hero %s: %s\n", kind, formatTile(*p.HeroTile))
	}
	for _, t := range p.Tiles {
		fmt.Fprintf(&b, "   %s\n", formatTile(t))
	}
	return b.String()
}

func formatTile(t layout.Tile) string {
	var b strings.Builder
	b.WriteString(t.Name)
	if t.Local {
		b.WriteString(" (you)")
	}
	var flags []string
	if t.Pinned {
		flags = append(flags, "pinned")
	}
	if t.Speaking {
		flags = append(flags, "speaking")
	}
	if !t.HasVideo {
		flags = append(flags, "no video")
	}
	if !t.HasAudio {
		flags = append(flags, "muted")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(flags, ", "))
	}
	return b.String()
}

// parseCommand splits a "/name arg" line. Lines without a leading slash are
// chat text and return an empty name.
func parseCommand(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

const meetingHelp = `commands:
  /pin <identity>   pin or unpin a participant
  /next /prev       page through the grid
  /page <n>         jump to page n
  /onext /oprev     page through the strip while pinned or presenting
  /who              list participants
  /leave            hang up
anything else is sent as a chat message
`

package watch

import (
	"fmt"
	"strings"

	"github.com/mabhi256/xmx/internal/tui"
)

// applyScrolling cuts content to height lines starting at the active tab's
// scroll position. When the content overflows, the last visible line becomes
// a position indicator.
func (m *Model) applyScrolling(content string, height int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= height {
		return content
	}

	pos := min(max(m.scrollPositions[m.activeTab], 0), len(lines)-height)
	m.scrollPositions[m.activeTab] = pos

	visible := lines[pos : pos+height]
	visible[len(visible)-1] = tui.MutedStyle.Render(
		fmt.Sprintf("▲▼ lines %d-%d of %d", pos+1, pos+height, len(lines)))
	return strings.Join(visible, "\n")
}

func (m *Model) scrollUp(lines int) {
	m.scrollPositions[m.activeTab] = max(m.scrollPositions[m.activeTab]-lines, 0)
}

// scrollDown is clamped on the next render.
func (m *Model) scrollDown(lines int) {
	m.scrollPositions[m.activeTab] += lines
}

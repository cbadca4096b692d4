package watch

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/xmx/internal/tui"
	"github.com/mabhi256/xmx/utils"
)

// StartTUI runs the registry browser until the user quits. Scopes held from
// the browser are released on exit.
func StartTUI(cfg Config) error {
	model := initialModel(cfg)
	defer model.releaseAll()

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	if m.showError {
		errorBox := tui.ErrorStyle.Render(m.errorMessage)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, errorBox)
	}

	header := m.renderHeader()
	tabBar := m.renderTabBar()
	helpView := m.help.View(m.keys)

	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(tabBar) - lipgloss.Height(helpView)
	contentHeight = max(contentHeight, 1)

	var content string
	if m.activeTab == ClassesTab {
		m.classes.SetHeight(contentHeight)
		content = m.classes.View()
	} else {
		content = m.applyScrolling(m.renderActiveTab(), contentHeight)
	}
	content = lipgloss.NewStyle().Height(contentHeight).Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, content, helpView)
}

func (m *Model) renderActiveTab() string {
	switch m.activeTab {
	case ObjectsTab:
		return m.renderObjectsTab()
	case AgentTab:
		return m.renderAgentTab()
	default:
		return tui.CriticalStyle.Render("Unknown tab")
	}
}

func (m *Model) renderHeader() string {
	title := fmt.Sprintf("🔍 xmx watch • session %s", shortSession(m.stats.Session))

	var status string
	if m.stats.Enabled {
		status = tui.GoodStyle.Render(fmt.Sprintf("🟢 Enabled • Up %s", utils.FormatDuration(time.Since(m.started))))
	} else {
		status = tui.WarningStyle.Render("⚠️ Disabled by configuration")
	}
	if m.stats.Failures > 0 {
		status += " " + tui.CriticalStyle.Render(fmt.Sprintf("• %d advice failures", m.stats.Failures))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		tui.HeaderStyle.Width(m.width).Render(title+" • "+status),
		tui.MutedStyle.Render(strings.Repeat("─", m.width)),
	)
}

func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func (m *Model) renderTabBar() string {
	var tabs []string
	for _, tab := range GetAllTabs() {
		if tab == m.activeTab {
			tabs = append(tabs, tui.TabActiveStyle.Render(tab.String()))
		} else {
			tabs = append(tabs, tui.TabInactiveStyle.Render(tab.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

package watch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mabhi256/xmx/internal/tui"
	"github.com/mabhi256/xmx/utils"
)

const keyWidth = 18

func (m *Model) renderObjectsTab() string {
	if m.selected == 0 {
		return tui.MutedStyle.Render("Select a class on the Classes tab and press enter")
	}
	info, ok := m.cfg.Agent.Registry().GetClass(m.selected)
	if !ok {
		return tui.WarningStyle.Render("Class is no longer loaded")
	}

	var lines []string
	lines = append(lines,
		tui.TitleStyle.Render(info.Name),
		tui.FormatKeyValue("Application", info.AppName, keyWidth),
		tui.FormatKeyValue("Tracked", fmt.Sprintf("%d", len(m.objects)), keyWidth),
	)
	if m.holds[info.ID] != nil {
		lines = append(lines, tui.FormatKeyValue("Hold", tui.RefStyle(true).Render("strong"), keyWidth))
	} else {
		lines = append(lines, tui.FormatKeyValue("Hold", tui.RefStyle(false).Render("weak"), keyWidth))
	}
	lines = append(lines, "")

	if len(m.objects) == 0 {
		lines = append(lines, tui.MutedStyle.Render("No live instances"))
		return strings.Join(lines, "\n")
	}

	for _, obj := range m.objects {
		header := fmt.Sprintf("#%d %s", obj.ID, obj.Object)
		if obj.ProxyTarget != nil {
			header += tui.InfoStyle.Render(" → " + obj.ProxyTarget.String())
		}
		lines = append(lines, tui.TextStyle.Render(header))

		fields := obj.Object.Fields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			value := tui.TruncateString(fmt.Sprint(fields[name]), max(m.width-keyWidth-6, 10))
			lines = append(lines, "  "+tui.FormatKeyValue(name, value, keyWidth))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderAgentTab() string {
	s := m.stats
	enabled := tui.GoodStyle.Render("yes")
	if !s.Enabled {
		enabled = tui.WarningStyle.Render("no")
	}

	lines := []string{
		tui.TitleStyle.Render("Agent"),
		tui.FormatKeyValue("Session", s.Session, keyWidth),
		tui.FormatKeyValue("Enabled", enabled, keyWidth),
		tui.FormatKeyValue("Scopes", fmt.Sprint(s.Scopes), keyWidth),
		tui.FormatKeyValue("Woven methods", utils.FormatCount(s.WovenMethods), keyWidth),
		tui.FormatKeyValue("Join points", fmt.Sprint(s.JoinPoints), keyWidth),
		tui.FormatKeyValue("Advice failures", utils.FormatCount(s.Failures), keyWidth),
		"",
	}

	barWidth := max(m.width-tui.DefaultLabelWidth-20, 10)
	lines = append(lines, tui.CreateBarChart("Registry", []tui.BarData{
		{Label: "Classes", Value: float64(s.Registry.Classes), Style: tui.InfoStyle},
		{Label: "Tracked objects", Value: float64(s.Registry.Objects), Style: tui.InfoStyle},
		{Label: "Live objects", Value: float64(s.Registry.LiveObjects), Style: tui.GoodStyle},
		{Label: "Strongly held", Value: float64(s.Registry.StrongObjects), Style: tui.WarningStyle,
			Suffix: fmt.Sprintf("(%d scopes held)", s.Registry.HeldScopes)},
	}, tui.DefaultBarConfig(barWidth)))

	lines = append(lines, "", tui.TitleStyle.Render("Live objects"), m.spark.View())

	if m.cfg.Notes != nil {
		if notes := m.cfg.Notes(); len(notes) > 0 {
			lines = append(lines, "", tui.TitleStyle.Render("Notes"))
			for _, n := range notes {
				lines = append(lines, tui.MutedStyle.Render(n))
			}
		}
	}
	return strings.Join(lines, "\n")
}

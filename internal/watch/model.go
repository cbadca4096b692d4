package watch

import (
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mabhi256/xmx/internal/agent"
	"github.com/mabhi256/xmx/internal/registry"
	"github.com/mabhi256/xmx/internal/tui"
	"github.com/mabhi256/xmx/utils"
)

type TabType int

const (
	ClassesTab TabType = iota
	ObjectsTab
	AgentTab
)

func (t TabType) String() string {
	switch t {
	case ClassesTab:
		return "Classes"
	case ObjectsTab:
		return "Objects"
	case AgentTab:
		return "Agent"
	default:
		return "Unknown"
	}
}

func GetAllTabs() []TabType {
	return []TabType{ClassesTab, ObjectsTab, AgentTab}
}

// Config is what the browser shows and how often it refreshes.
type Config struct {
	Agent    *agent.Agent
	Interval time.Duration
	// Notes returns extra lines for the agent tab, e.g. workload output.
	Notes func() []string
}

type tickMsg time.Time

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// classItem is a registered class in the selection list.
type classItem struct {
	info    registry.XmxClassInfo
	tracked int
	held    bool
}

func (i classItem) FilterValue() string {
	return i.info.AppName + " " + i.info.Name
}

func (i classItem) Title() string {
	title := i.info.Name
	if i.held {
		title += " 📌"
	}
	return title
}

func (i classItem) Description() string {
	limit := "unlimited"
	if i.info.MaxInstances > 0 {
		limit = fmt.Sprint(i.info.MaxInstances)
	}
	return fmt.Sprintf("app %s • id %d • %d tracked • cap %s", i.info.AppName, i.info.ID, i.tracked, limit)
}

type Model struct {
	cfg  Config
	help help.Model
	keys KeyMap

	width  int
	height int

	activeTab       TabType
	scrollPositions map[TabType]int

	classes  list.Model
	selected int // class id shown in the objects tab
	objects  []registry.XmxObjectInfo
	holds    map[int]func()

	stats agent.Stats
	spark sparkline.Model

	started    time.Time
	lastUpdate time.Time

	errorMessage string
	showError    bool
}

func initialModel(cfg Config) *Model {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	classes := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	classes.Title = "Managed classes"
	classes.SetShowStatusBar(false)
	classes.SetShowHelp(false)
	classes.SetFilteringEnabled(true)

	m := &Model{
		cfg:             cfg,
		help:            help.New(),
		keys:            keys,
		activeTab:       ClassesTab,
		scrollPositions: make(map[TabType]int),
		classes:         classes,
		holds:           make(map[int]func()),
		spark:           sparkline.New(40, 4, sparkline.WithStyle(tui.InfoStyle)),
		started:         time.Now(),
	}
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tick(m.cfg.Interval)
}

func (m *Model) setError(err string) {
	m.errorMessage = err
	m.showError = true
}

func (m *Model) clearError() {
	m.errorMessage = ""
	m.showError = false
}

// refresh pulls a new snapshot from the agent.
func (m *Model) refresh() {
	reg := m.cfg.Agent.Registry()
	m.stats = m.cfg.Agent.Statistics()

	m.spark.Push(float64(m.stats.Registry.LiveObjects))
	m.spark.Draw()

	infos := reg.Classes()
	items := make([]list.Item, 0, len(infos))
	for _, info := range infos {
		items = append(items, classItem{
			info:    info,
			tracked: len(reg.ObjectsOf(info.ID)),
			held:    m.holds[info.ID] != nil,
		})
	}
	m.classes.SetItems(items)

	if m.selected != 0 {
		if _, ok := reg.GetClass(m.selected); !ok {
			m.selected = 0
		}
	}
	m.objects = nil
	if m.selected != 0 {
		m.objects = reg.ObjectsOf(m.selected)
	}
	m.lastUpdate = time.Now()
}

func (m *Model) selectedClass() (classItem, bool) {
	item, ok := m.classes.SelectedItem().(classItem)
	return item, ok
}

// toggleHold pins or unpins every tracked instance in the selected class's scope.
func (m *Model) toggleHold() {
	item, ok := m.selectedClass()
	if !ok {
		return
	}
	id := item.info.ID
	if release := m.holds[id]; release != nil {
		release()
		delete(m.holds, id)
		return
	}
	release, err := m.cfg.Agent.Registry().Hold(id)
	if err != nil {
		m.setError(fmt.Sprintf("Failed to hold %s: %v", item.info.Name, err))
		return
	}
	m.holds[id] = release
}

func (m *Model) releaseAll() {
	for id, release := range m.holds {
		release()
		delete(m.holds, id)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.classes.SetSize(msg.Width, max(msg.Height-6, 3))
		m.spark.Resize(max(msg.Width-4, 10), 4)
		m.spark.Draw()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick(m.cfg.Interval)

	case tea.KeyMsg:
		if m.activeTab == ClassesTab && m.classes.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.classes, cmd = m.classes.Update(msg)
			return m, cmd
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.releaseAll()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		if m.showError {
			m.clearError()
		} else {
			m.activeTab = ClassesTab
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		m.activeTab = utils.GetNextEnum(m.activeTab, AgentTab)
		return m, nil

	case key.Matches(msg, m.keys.ShiftTab):
		m.activeTab = utils.GetPrevEnum(m.activeTab, AgentTab)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Purge):
		n := m.cfg.Agent.Registry().Purge()
		m.refresh()
		if n == 0 {
			m.setError("Nothing to purge: every tracked instance is still alive")
		}
		return m, nil
	}

	switch m.activeTab {
	case ClassesTab:
		switch {
		case key.Matches(msg, m.keys.Enter):
			if item, ok := m.selectedClass(); ok {
				m.selected = item.info.ID
				m.activeTab = ObjectsTab
				m.scrollPositions[ObjectsTab] = 0
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.Hold):
			m.toggleHold()
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.classes, cmd = m.classes.Update(msg)
		return m, cmd

	default:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.scrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.scrollDown(1)
		case key.Matches(msg, m.keys.PageUp):
			m.scrollUp(10)
		case key.Matches(msg, m.keys.PageDown):
			m.scrollDown(10)
		}
		return m, nil
	}
}

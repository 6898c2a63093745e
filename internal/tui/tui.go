// Package tui provides a terminal browser for an analysis report
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vaultsphere/internal/report"
	"vaultsphere/internal/tui/styles"
)

// Scene represents the current view
type Scene int

const (
	SceneSummary Scene = iota
	SceneBursts
	SceneEventMix
	SceneIPs
	SceneOffHours
	SceneTenants
	sceneCount
)

var tabs = []struct {
	name  string
	key   string
	scene Scene
}{
	{"Summary", "1", SceneSummary},
	{"Bursts", "2", SceneBursts},
	{"Event mix", "3", SceneEventMix},
	{"IPs", "4", SceneIPs},
	{"Off-hours", "5", SceneOffHours},
	{"Tenants", "6", SceneTenants},
}

// Model is the main TUI model
type Model struct {
	doc *report.Document

	scene Scene
	// offset is the first visible body line of the active scene.
	offset int

	width  int
	height int

	quitting bool
}

// New creates a model browsing doc.
func New(doc *report.Document) *Model {
	return &Model{doc: doc, scene: SceneSummary}
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) setScene(s Scene) {
	if s != m.scene {
		m.scene = s
		m.offset = 0
	}
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "1", "2", "3", "4", "5", "6":
			m.setScene(Scene(key[0] - '1'))
		case "tab", "right", "l":
			m.setScene((m.scene + 1) % sceneCount)
		case "shift+tab", "left", "h":
			m.setScene((m.scene + sceneCount - 1) % sceneCount)
		case "down", "j":
			if m.offset < m.maxOffset() {
				m.offset++
			}
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
		case "home", "g":
			m.offset = 0
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.offset > m.maxOffset() {
			m.offset = m.maxOffset()
		}
	}
	return m, nil
}

// body renders the active scene before scrolling.
func (m *Model) body() string {
	switch m.scene {
	case SceneBursts:
		return report.Bursts(m.doc.Report)
	case SceneEventMix:
		return report.EventMix(m.doc.Report)
	case SceneIPs:
		return report.IPAccess(m.doc.Report)
	case SceneOffHours:
		return report.OffHours(m.doc.Report)
	case SceneTenants:
		return report.TenantActivity(m.doc.Profile)
	default:
		return report.Summary(m.doc) + "\n\n" + report.Risk(m.doc)
	}
}

// visibleLines is the body height left after header and footer. Zero
// means the terminal size is unknown.
func (m *Model) visibleLines() int {
	if m.height == 0 {
		return 0
	}
	if n := m.height - 5; n > 1 {
		return n
	}
	return 1
}

func (m *Model) maxOffset() int {
	visible := m.visibleLines()
	if visible == 0 {
		return 0
	}
	lines := strings.Count(m.body(), "\n") + 1
	if lines <= visible {
		return 0
	}
	return lines - visible
}

// View renders the current view
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	lines := strings.Split(m.body(), "\n")
	if m.offset < len(lines) {
		lines = lines[m.offset:]
	}
	if visible := m.visibleLines(); visible > 0 && len(lines) > visible {
		lines = lines[:visible]
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	var tabViews []string
	for _, tab := range tabs {
		label := fmt.Sprintf(" %s %s ", tab.key, tab.name)
		if tab.scene == m.scene {
			tabViews = append(tabViews, styles.TabActive.Render(label))
		} else {
			tabViews = append(tabViews, styles.TabInactive.Render(label))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabViews...)
	level := string(m.doc.Report.Risk.Level)
	risk := styles.Level(level).Render(" risk " + level)

	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.MutedColor).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabBar, risk))
}

func (m *Model) renderFooter() string {
	help := " [1-6] Switch tabs  [Tab] Next tab  [↑↓/jk] Scroll  [q] Quit "
	return styles.Help.Render(help)
}

// Run starts the TUI application
func Run(doc *report.Document) error {
	p := tea.NewProgram(New(doc), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

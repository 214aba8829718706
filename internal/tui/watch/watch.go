// Package watch renders the live team dashboard behind
// `ck crew status --watch`: one row per teammate, reloaded on a timer,
// quit with q.
package watch

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crewkit/crewkit/internal/crewcfg"
	"github.com/crewkit/crewkit/internal/health"
	"github.com/crewkit/crewkit/internal/identity"
	"github.com/crewkit/crewkit/internal/style"
	"github.com/crewkit/crewkit/internal/team"
)

// refreshInterval is how often the dashboard reloads team state.
const refreshInterval = 2 * time.Second

// Snapshot is one load of team state and health.
type Snapshot struct {
	TeamName string
	Profile  string
	Status   string
	Reports  []health.Report
	Err      error
	Taken    time.Time
}

// Loader produces a fresh snapshot. The model polls it on a timer, so
// it must be safe to call repeatedly.
type Loader func() Snapshot

// NewProjectLoader binds a loader to one project profile. The profile
// may be empty to take the config's default. fallbackStaleHours feeds
// the health window when neither the profile nor the config sets one.
func NewProjectLoader(projectRoot, profile string, fallbackStaleHours int) Loader {
	return func() Snapshot {
		snap := Snapshot{Taken: time.Now()}

		cfg, err := crewcfg.Load(projectRoot)
		if err != nil {
			snap.Err = err
			return snap
		}
		name, tm, err := cfg.ResolveProfile(profile)
		if err != nil {
			snap.Err = err
			return snap
		}
		snap.TeamName = tm.Name
		snap.Profile = name

		st, err := team.Load(identity.ProjectHash(projectRoot), name)
		if err != nil {
			snap.Err = err
			return snap
		}
		if st != nil {
			snap.Status = st.Status
		} else {
			snap.Status = "not started"
		}

		mon := health.NewMonitor(cfg.StaleWindowFor(tm, fallbackStaleHours))
		snap.Reports = mon.Inspect(tm.Flatten(""), st)
		return snap
	}
}

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// snapshotMsg carries a fresh snapshot from the loader.
type snapshotMsg Snapshot

// tickMsg fires the next reload.
type tickMsg time.Time

// Model is the bubbletea model for the watch dashboard.
type Model struct {
	loader  Loader
	keys    keyMap
	spinner spinner.Model
	table   table.Model

	snapshot Snapshot
	loaded   bool
	width    int
	height   int
}

// NewModel creates a dashboard model around a snapshot loader.
func NewModel(loader Loader) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true)
	ts.Selected = ts.Selected.Bold(true)
	t.SetStyles(ts)

	return &Model{loader: loader, keys: defaultKeyMap(), spinner: s, table: t}
}

// Init kicks off the spinner and the first load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetch(),
		tea.SetWindowTitle("Crew Status"),
	)
}

// fetch returns a command that loads a snapshot off the event loop.
func (m *Model) fetch() tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		return snapshotMsg(loader())
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages. Fresh data schedules the next tick; a tick
// triggers the next fetch.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(m.width))
		m.table.SetHeight(max(3, m.height-6))

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		m.loaded = true
		m.table.SetRows(rows(m.snapshot.Reports))
		return m, tick()

	case tickMsg:
		return m, m.fetch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m *Model) View() string {
	if !m.loaded {
		return fmt.Sprintf("\n %s loading team state...\n", m.spinner.View())
	}
	if m.snapshot.Err != nil {
		return fmt.Sprintf("\n %s %v\n\n %s\n",
			style.ErrorPrefix, m.snapshot.Err, style.Dim.Render("q to quit"))
	}

	var b strings.Builder
	b.WriteString("\n " + style.Bold.Render(header(m.snapshot)) + "\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n " + style.Dim.Render(footer(m.snapshot)) + "\n")
	return b.String()
}

// Run starts the dashboard and blocks until the user quits.
func Run(loader Loader) error {
	p := tea.NewProgram(NewModel(loader), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func header(s Snapshot) string {
	parts := []string{"team " + s.TeamName}
	if s.Profile != "" && s.Profile != s.TeamName {
		parts = append(parts, "profile "+s.Profile)
	}
	if s.Status != "" {
		parts = append(parts, s.Status)
	}
	return strings.Join(parts, "  |  ")
}

func footer(s Snapshot) string {
	return fmt.Sprintf("updated %s   q quit   r refresh", s.Taken.Format("15:04:05"))
}

// columns sizes the table for the terminal width. The column count is
// fixed; branch and worktree split whatever the fixed columns leave.
func columns(width int) []table.Column {
	rest := max(24, width-52)
	branch := min(22, rest/2)
	return []table.Column{
		{Title: "Status", Width: 16},
		{Title: "Teammate", Width: 12},
		{Title: "Branch", Width: branch},
		{Title: "Last Active", Width: 12},
		{Title: "Worktree", Width: max(12, rest-branch)},
	}
}

func rows(reports []health.Report) []table.Row {
	out := make([]table.Row, 0, len(reports))
	for _, r := range reports {
		out = append(out, table.Row{
			statusBadge(r.Status),
			r.Teammate,
			r.Branch,
			ageCell(r.LastActive),
			shortPath(r.Worktree),
		})
	}
	return out
}

func statusBadge(status string) string {
	switch status {
	case health.StatusActive:
		return style.Success.Render("● active")
	case health.StatusIdle:
		return style.Warning.Render("● idle")
	case health.StatusCrashed:
		return style.Error.Render("✗ crashed")
	case health.StatusUnresponsive:
		return style.Error.Render("! unresponsive")
	default:
		return style.Dim.Render("? unknown")
	}
}

func ageCell(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatAge(*t)
}

// formatAge formats a duration since the given time.
func formatAge(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

func shortPath(path string) string {
	if path == "" {
		return "-"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}

// Package tui is the terminal front end of the explorer. It polls the
// session on a tick and never blocks on display work.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/photoframe/internal/explorer"
	"github.com/justyntemme/photoframe/internal/tristate"
)

// DefaultPollInterval is how often the model drains PollUpdate.
const DefaultPollInterval = 50 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	crumbStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dirStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	lostStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type pollMsg struct{}

type item struct {
	name  string
	isDir bool
	sel   tristate.State
	named bool
}

// Model implements tea.Model over one explorer session.
type Model struct {
	ex       *explorer.Explorer
	interval time.Duration

	page      explorer.PageDescriptor
	items     []item
	cursor    int
	dirs      explorer.DirectionsUpdate
	haveDirs  bool
	selectAll tristate.State
	photo     *explorer.ImageUpdate
	photoSel  tristate.State

	status string
	err    error
	width  int
}

// New creates a model showing page, the descriptor Start returned.
func New(ex *explorer.Explorer, page explorer.PageDescriptor, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m := Model{ex: ex, interval: interval, width: 80}
	m.enter(page)
	return m
}

// Run drives the model until the user quits. The caller closes ex.
func Run(ex *explorer.Explorer, page explorer.PageDescriptor, interval time.Duration) error {
	final, err := tea.NewProgram(New(ex, page, interval), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case pollMsg:
		m.drain()
		if m.err != nil {
			return m, nil
		}
		return m, m.tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// drain applies every queued update for the current page.
func (m *Model) drain() {
	for {
		u, ok := m.ex.PollUpdate()
		if !ok {
			return
		}
		m.apply(u)
	}
}

func (m *Model) apply(u explorer.Update) {
	switch u := u.(type) {
	case explorer.DirectionsUpdate:
		m.dirs = u
		m.haveDirs = true
	case explorer.NameUpdate:
		it := m.slot(u.Index)
		it.name = u.Name
		it.isDir = u.IsDirectory
		it.named = true
	case explorer.SelectionUpdate:
		if m.page.IsDirectory {
			m.slot(u.Index).sel = u.Selection
		} else {
			m.photoSel = u.Selection
		}
	case explorer.ImageUpdate:
		m.photo = &u
	case explorer.SelectAllUpdate:
		m.selectAll = u.Selection
	case explorer.FailureUpdate:
		m.err = u.Err
	}
}

func (m *Model) slot(i int) *item {
	for len(m.items) <= i {
		m.items = append(m.items, item{})
	}
	return &m.items[i]
}

func (m *Model) enter(page explorer.PageDescriptor) {
	m.page = page
	m.items = nil
	m.cursor = 0
	m.dirs = explorer.DirectionsUpdate{}
	m.haveDirs = false
	m.photo = nil
	m.photoSel = tristate.Not
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	}
	if m.err != nil {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		if m.page.IsDirectory && m.cursor < len(m.items) && m.items[m.cursor].named {
			m.navigate(m.ex.GoInto(m.cursor))
		}
	case "backspace", "left", "h":
		if m.haveDirs && m.dirs.Up {
			m.navigate(m.ex.GoTo(explorer.Up))
		}
	case "n", "pgdown":
		if m.haveDirs && m.dirs.Forward {
			m.navigate(m.ex.GoTo(explorer.Next))
		}
	case "p", "pgup":
		if m.haveDirs && m.dirs.Back {
			m.navigate(m.ex.GoTo(explorer.Previous))
		}
	case " ", "x":
		m.toggle()
	case "a":
		m.check(m.ex.SelectAll(m.selectAll != tristate.All))
	case "s":
		m.check(m.ex.CommitOrCancel(true))
		m.status = "saved"
	case "c":
		m.check(m.ex.CommitOrCancel(false))
		m.status = "changes discarded"
	}
	return m, nil
}

func (m *Model) toggle() {
	switch {
	case m.page.IsDirectory:
		if m.cursor < len(m.items) && m.items[m.cursor].named {
			m.check(m.ex.Select(m.cursor, m.items[m.cursor].sel != tristate.All))
		}
	case !m.page.Empty:
		m.check(m.ex.Select(0, m.photoSel != tristate.All))
	}
}

func (m *Model) navigate(page explorer.PageDescriptor, err error) {
	if m.check(err) {
		m.enter(page)
		m.status = ""
	}
}

func (m *Model) check(err error) bool {
	if err != nil {
		m.err = err
		return false
	}
	return true
}

func (m Model) View() string {
	var b strings.Builder

	title := m.page.Title
	if title == "" {
		title = "Photos"
	}
	b.WriteString(titleStyle.Render(title))
	if len(m.page.Breadcrumbs) > 0 {
		b.WriteString("  " + crumbStyle.Render("/ "+strings.Join(m.page.Breadcrumbs, " / ")))
	}
	b.WriteString("\n\n")

	switch {
	case m.page.Empty:
		b.WriteString("No photos in the catalog. Run `photoframe scan` first.\n")
	case m.page.IsDirectory:
		for i, it := range m.items {
			line := fmt.Sprintf("%s %s", mark(it.sel), it.name)
			if it.isDir {
				line = fmt.Sprintf("%s %s", mark(it.sel), dirStyle.Render(it.name+"/"))
			}
			if !it.named {
				line = mark(it.sel) + " …"
			}
			if i == m.cursor {
				line = cursorStyle.Render("> ") + line
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		if m.page.NumPages > 1 {
			fmt.Fprintf(&b, "\npage %d/%d\n", m.page.Page+1, m.page.NumPages)
		}
	default:
		b.WriteString(m.photoView())
	}

	b.WriteString("\n" + fmt.Sprintf("catalog %s", mark(m.selectAll)))
	if m.status != "" {
		b.WriteString("  " + m.status)
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter open • ← up • n/p page • space select • a all • s save • c cancel • q quit"))
	return b.String()
}

func (m Model) photoView() string {
	if m.photo == nil {
		return "loading…\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", mark(m.photoSel), m.photo.Path)
	if m.photo.Lost {
		b.WriteString(lostStyle.Render("photo is missing or unreadable") + "\n")
	} else if m.photo.Image != nil {
		r := m.photo.Image.Bounds()
		fmt.Fprintf(&b, "%dx%d\n", r.Dx(), r.Dy())
		b.WriteString(preview(m.photo.Image, min(previewPixels, m.width)))
	}
	if m.photo.Caption != "" {
		b.WriteString(m.photo.Caption + "\n")
	}
	return b.String()
}

func mark(s tristate.State) string {
	switch s {
	case tristate.All:
		return "[x]"
	case tristate.Partial:
		return "[~]"
	default:
		return "[ ]"
	}
}

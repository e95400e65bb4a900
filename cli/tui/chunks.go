package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/patchreview/patch"
)

// headerLines is the space reserved above and below the viewport.
const headerLines = 4

// ChunkModel browses split chunks one file at a time.
type ChunkModel struct {
	chunks   []patch.Chunk
	index    int
	vp       viewport.Model
	width    int
	height   int
	quitting bool
}

// NewChunkModel creates a browser positioned on the first chunk.
func NewChunkModel(chunks []patch.Chunk) ChunkModel {
	m := ChunkModel{
		chunks: chunks,
		vp:     viewport.New(80, 20),
		width:  80,
		height: 20 + headerLines,
	}
	m.refresh()
	return m
}

// Index returns the position of the chunk on screen.
func (m ChunkModel) Index() int {
	return m.index
}

// Init implements tea.Model.
func (m ChunkModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ChunkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = max(msg.Height-headerLines, 1)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			if m.index < len(m.chunks)-1 {
				m.index++
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, keys.Prev):
			if m.index > 0 {
				m.index--
				m.refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// refresh loads the current chunk into the viewport.
func (m *ChunkModel) refresh() {
	if len(m.chunks) == 0 {
		m.vp.SetContent(HelpStyle.Render("(no chunks)"))
		return
	}
	lines := strings.Split(strings.TrimSuffix(m.chunks[m.index].Text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = DiffLine(line)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.vp.GotoTop()
}

// View implements tea.Model.
func (m ChunkModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if len(m.chunks) > 0 {
		c := m.chunks[m.index]
		b.WriteString(TitleStyle.Render(fmt.Sprintf("[%d/%d] %s", m.index+1, len(m.chunks), c.Filename)))
		b.WriteString(" ")
		b.WriteString(LabelStyle.Render(fmt.Sprintf("%d hunk(s)", c.Hunks)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("n/→ next • p/← prev • ↑/↓ scroll • q quit"))
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Next key.Binding
	Prev key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Next: key.NewBinding(
		key.WithKeys("n", "right", "tab"),
		key.WithHelp("n", "next chunk"),
	),
	Prev: key.NewBinding(
		key.WithKeys("p", "left", "shift+tab"),
		key.WithHelp("p", "previous chunk"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunChunkTUI runs the chunk browser.
func RunChunkTUI(chunks []patch.Chunk) error {
	p := tea.NewProgram(NewChunkModel(chunks), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

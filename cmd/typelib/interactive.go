package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/typelib/registry"
	"github.com/wippyai/typelib/typemodel"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserModel struct {
	err      error
	reg      *registry.Registry
	filename string
	tag      string
	names    []string
	input    textinput.Model
	detail   string
	selected int
	offset   int
	state    modelState
}

type modelState int

const (
	stateBrowse modelState = iota
	stateShowType
	stateBuildExpr
)

const pageSize = 20

func newBrowserModel(filename, tag string) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "/double[4] or /std/vector</double>"
	ti.Prompt = "build: "
	ti.Width = 50
	return &browserModel{
		filename: filename,
		tag:      tag,
		input:    ti,
		state:    stateBrowse,
	}
}

type loadedMsg struct {
	err   error
	reg   *registry.Registry
	names []string
}

func (m *browserModel) Init() tea.Cmd {
	return m.loadDocument
}

func (m *browserModel) loadDocument() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	reg := registry.NewRegistry()
	if err := reg.Import(m.tag, data, nil); err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{reg: reg, names: reg.Names()}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateBuildExpr {
			return m.updateBuildExpr(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
				if m.selected < m.offset {
					m.offset = m.selected
				}
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.names)-1 {
				m.selected++
				if m.selected >= m.offset+pageSize {
					m.offset = m.selected - pageSize + 1
				}
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.names) > 0 {
					m.showType(m.names[m.selected])
				}
			case stateShowType:
				m.state = stateBrowse
				m.detail = ""
			}

		case "b":
			if m.state == stateBrowse && m.reg != nil {
				m.state = stateBuildExpr
				m.input.SetValue("")
				m.input.Focus()
			}

		case "esc":
			if m.state == stateShowType {
				m.state = stateBrowse
				m.detail = ""
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.reg = msg.reg
		m.names = msg.names
	}

	return m, nil
}

func (m *browserModel) updateBuildExpr(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		expr := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		if expr == "" || m.reg == nil {
			m.state = stateBrowse
			return m, nil
		}
		typ, err := m.reg.Build(expr)
		if err != nil {
			m.err = err
			m.state = stateShowType
			m.detail = ""
			return m, nil
		}
		m.err = nil
		m.names = m.reg.Names()
		m.showType(typ.Name)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browserModel) showType(name string) {
	typ := m.reg.Get(name)
	if typ == nil {
		m.err = fmt.Errorf("type %s is not defined", name)
		m.state = stateShowType
		return
	}
	m.err = nil
	m.detail = describeType(typ)
	m.state = stateShowType
}

func describeType(t *typemodel.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", nameStyle.Render(t.Name))
	fmt.Fprintf(&b, "kind: %s\n", kindStyle.Render(t.Kind.String()))
	fmt.Fprintf(&b, "size: %d bytes\n", t.Size)

	switch t.Kind {
	case typemodel.KindNumeric:
		fmt.Fprintf(&b, "category: %s\n", t.Numeric)
	case typemodel.KindEnum:
		b.WriteString("values:\n")
		for _, v := range t.Values {
			fmt.Fprintf(&b, "  %-20s = %d\n", v.Symbol, v.Value)
		}
	case typemodel.KindCompound:
		b.WriteString("fields:\n")
		for _, f := range t.Fields {
			fmt.Fprintf(&b, "  @%-5d %-20s %s\n", f.Offset, f.Name, kindStyle.Render(f.Type.Name))
		}
	case typemodel.KindArray:
		fmt.Fprintf(&b, "element: %s x %d\n", kindStyle.Render(t.Elem.Name), t.Count)
	case typemodel.KindPointer:
		fmt.Fprintf(&b, "pointee: %s\n", kindStyle.Render(t.Elem.Name))
	case typemodel.KindContainer:
		fmt.Fprintf(&b, "container: %s of %s\n", t.ContainerKind, kindStyle.Render(t.Elem.Name))
	}

	if len(t.Meta) > 0 {
		b.WriteString("metadata:\n")
		for _, k := range sortedKeys(t.Meta) {
			fmt.Fprintf(&b, "  %s: %s\n", k, t.Meta[k])
		}
	}
	return b.String()
}

func sortedKeys(m typemodel.Metadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *browserModel) View() string {
	if m.err != nil && m.state != stateShowType {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.reg == nil {
		return "Loading document..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Type Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	fmt.Fprintf(&b, "  (%d types)\n\n", len(m.names))

	switch m.state {
	case stateBrowse:
		end := m.offset + pageSize
		if end > len(m.names) {
			end = len(m.names)
		}
		for i := m.offset; i < end; i++ {
			typ := m.reg.Get(m.names[i])
			if typ == nil {
				continue
			}
			line := fmt.Sprintf("%-40s %-9s %5d bytes", typ.Name, typ.Kind, typ.Size)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • b build expression • q quit"))

	case stateShowType:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.detail))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))

	case stateBuildExpr:
		b.WriteString("Build a type expression:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter build • esc back"))
	}

	return b.String()
}

func runInteractive(filename, tag string) error {
	p := tea.NewProgram(newBrowserModel(filename, tag), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

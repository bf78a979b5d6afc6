package ui

import (
	"errors"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Option is one selectable row.
type Option struct {
	Value       string
	Label       string
	Description string
	// Checked is the initial state in multi-select menus.
	Checked bool
}

// Menu runs interactive selection lists.
type Menu struct {
	In  io.Reader
	Out io.Writer
}

// Select lets the user pick exactly one option and returns its Value.
func (m Menu) Select(title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options to select from")
	}
	final, err := m.run(newSelectModel(title, options, false))
	if err != nil {
		return "", err
	}
	if final.cancelled {
		return "", ErrCancelled
	}
	return options[final.cursor].Value, nil
}

// MultiSelect lets the user toggle options and returns the checked Values in option order.
func (m Menu) MultiSelect(title string, options []Option) ([]string, error) {
	if len(options) == 0 {
		return nil, nil
	}
	final, err := m.run(newSelectModel(title, options, true))
	if err != nil {
		return nil, err
	}
	if final.cancelled {
		return nil, ErrCancelled
	}
	return final.checkedValues(), nil
}

func (m Menu) run(model *selectModel) (*selectModel, error) {
	var opts []tea.ProgramOption
	if m.In != nil {
		opts = append(opts, tea.WithInput(m.In))
	}
	if m.Out != nil {
		opts = append(opts, tea.WithOutput(m.Out))
	}
	result, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrInterrupted) || errors.Is(err, tea.ErrProgramKilled) {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return result.(*selectModel), nil
}

// selectModel is the bubbletea model behind Select and MultiSelect.
type selectModel struct {
	title     string
	options   []Option
	checked   []bool
	multi     bool
	cursor    int
	done      bool
	cancelled bool
}

func newSelectModel(title string, options []Option, multi bool) *selectModel {
	checked := make([]bool, len(options))
	for i, opt := range options {
		checked[i] = opt.Checked
	}
	return &selectModel{title: title, options: options, checked: checked, multi: multi}
}

func (m *selectModel) Init() tea.Cmd { return nil }

// Update handles up/down to move, space to toggle, enter to accept and esc to cancel.
func (m *selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		} else {
			m.cursor = len(m.options) - 1
		}
	case "down", "j", "tab":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		} else {
			m.cursor = 0
		}
	case " ", "x":
		if m.multi {
			m.checked[m.cursor] = !m.checked[m.cursor]
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	case "esc", "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *selectModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")
	for i, opt := range m.options {
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		if i == m.cursor {
			prefix = "> "
			style = style.Bold(true).Foreground(lipgloss.Color("33"))
		}
		if m.multi {
			box := "[ ] "
			if m.checked[i] {
				box = "[x] "
			}
			prefix += box
		}
		sb.WriteString(style.Render(prefix + opt.Label))
		if opt.Description != "" {
			sb.WriteString(dimStyle.Render("  " + opt.Description))
		}
		sb.WriteString("\n")
	}
	hint := "↑/↓ move • enter select • esc cancel"
	if m.multi {
		hint = "↑/↓ move • space toggle • enter confirm • esc cancel"
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(hint))
	sb.WriteString("\n")
	return sb.String()
}

func (m *selectModel) checkedValues() []string {
	var values []string
	for i, on := range m.checked {
		if on {
			values = append(values, m.options[i].Value)
		}
	}
	return values
}

package cli

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	prompt     = "cmd >> "
	maxHistory = 200
)

type resultMsg struct {
	lines []string
	exit  bool
}

type model struct {
	ctx     context.Context
	shell   *Shell
	input   []rune
	history []string
	busy    bool
}

func newModel(ctx context.Context, shell *Shell) model {
	return model{
		ctx:     ctx,
		shell:   shell,
		history: []string{"Type help for a list of commands."},
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

// execute runs line off the UI loop so a pulse does not freeze the screen.
func (m model) execute(line string) tea.Cmd {
	return func() tea.Msg {
		lines, err := m.shell.Execute(m.ctx, line)
		return resultMsg{lines: lines, exit: errors.Is(err, ErrExit)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := string(m.input)
			m.input = nil
			m.appendHistory(prompt + line)
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.busy = true
			return m, m.execute(line)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
	case resultMsg:
		m.busy = false
		for _, line := range msg.lines {
			m.appendHistory(line)
		}
		if msg.exit {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *model) appendHistory(lines string) {
	m.history = append(m.history, strings.Split(lines, "\n")...)
	if over := len(m.history) - maxHistory; over > 0 {
		m.history = m.history[over:]
	}
}

func (m model) View() string {
	var builder strings.Builder
	for _, line := range m.history {
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	if !m.busy {
		builder.WriteString(prompt)
		builder.WriteString(string(m.input))
	}
	return builder.String()
}

// Run shows the shell until the user exits or ctx is done.
func Run(ctx context.Context, shell *Shell) error {
	p := tea.NewProgram(newModel(ctx, shell))
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Send(tea.Quit())
		case <-done:
		}
	}()
	_, err := p.Run()
	return err
}

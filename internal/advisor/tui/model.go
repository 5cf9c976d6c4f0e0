// Package tui provides the interactive chat loop for the pipeline command.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ExitCommand ends the session, compared case-insensitively.
const ExitCommand = "exit"

// Asker answers one question, keeping whatever conversation state it needs.
type Asker interface {
	Run(ctx context.Context, question string) (string, error)
}

type answerMsg struct {
	answer string
	err    error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	ctx      context.Context
	asker    Asker
	banner   string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	lines    []string
	busy     bool
	ready    bool
}

// New creates a chat model.
func New(ctx context.Context, asker Asker, banner string) Model {
	ti := textinput.New()
	ti.Prompt = "You: "
	ti.Placeholder = "Ask a question, or type exit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		asker:    asker,
		banner:   banner,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, resize and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		// banner, input and status lines
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-fh-3)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if strings.EqualFold(q, ExitCommand) {
				return m, tea.Quit
			}
			if q == "" {
				return m, nil
			}
			m.input.Reset()
			m.lines = append(m.lines, userStyle.Render("You: ")+q)
			m.busy = true
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		}

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.lines = append(m.lines, errorStyle.Render("Error: "+msg.err.Error()))
		} else {
			m.lines = append(m.lines, botStyle.Render("Bot: ")+msg.answer)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the banner, transcript, input line and status.
func (m Model) View() string {
	if !m.ready {
		return m.banner
	}
	status := statusStyle.Render("enter to send, exit to quit")
	if m.busy {
		status = m.spinner.View() + " thinking..."
	}
	return bannerStyle.Render(m.banner) + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		status
}

func (m Model) ask(q string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		answer, err := asker.Run(ctx, q)
		return answerMsg{answer: answer, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.lines, "\n")))
	m.viewport.GotoBottom()
}

// Run starts the interactive session and blocks until the user quits.
func Run(ctx context.Context, asker Asker, banner string) error {
	_, err := tea.NewProgram(New(ctx, asker, banner), tea.WithContext(ctx)).Run()
	return err
}

var (
	bannerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

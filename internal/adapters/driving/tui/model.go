package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
)

// answerMsg carries the result of an Ask call back into Update.
type answerMsg struct {
	resp *domain.RAGResponse
	err  error
}

// Options configures the model.
type Options struct {
	// TopK is passed to every question; 0 uses the service default.
	TopK int

	// UseGenerator enables the answer generator when one is configured.
	UseGenerator bool

	// Style names the glamour style used to render answers.
	Style string
}

// Model is the Bubble Tea model for the policy assistant.
type Model struct {
	ctx      context.Context
	rag      driving.RAGService
	opts     Options
	keys     *KeyMap
	styles   *Styles
	markdown *markdownRenderer

	input    textinput.Model
	viewport viewport.Model

	departments []string
	department  int

	last    *domain.RAGResponse
	err     error
	loading bool
	ready   bool
	width   int
}

// New creates the model, starting on the general department.
func New(ctx context.Context, rag driving.RAGService, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Escribe tu pregunta y pulsa Enter"
	ti.CharLimit = 1000
	ti.Focus()

	departments := domain.DepartmentNames()
	start := 0
	for i, d := range departments {
		if d == domain.DepartmentGeneral {
			start = i
		}
	}

	return Model{
		ctx:         ctx,
		rag:         rag,
		opts:        opts,
		keys:        DefaultKeyMap(),
		styles:      DefaultStyles(),
		markdown:    newMarkdownRenderer(opts.Style),
		input:       ti,
		viewport:    viewport.New(80, 10),
		departments: departments,
		department:  start,
	}
}

// Department returns the selected department.
func (m Model) Department() string {
	return m.departments[m.department]
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key, resize and answer messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, boxH := m.styles.AnswerBox.GetFrameSize()
		_, inputH := m.styles.InputBox.GetFrameSize()
		reserved := 2 + 1 + 1 + inputH + boxH // header, department, footer, input
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case answerMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.last = msg.resp
		}
		m.refresh()
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextDepartment):
			m.department = (m.department + 1) % len(m.departments)
			return m, nil
		case key.Matches(msg, m.keys.PrevDepartment):
			m.department = (m.department - 1 + len(m.departments)) % len(m.departments)
			return m, nil
		case key.Matches(msg, m.keys.Ask):
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.loading {
				return m, nil
			}
			m.loading = true
			m.err = nil
			m.input.SetValue("")
			return m, m.ask(question, m.Department())
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask returns a command answering question for department.
func (m Model) ask(question, department string) tea.Cmd {
	rag, ctx, opts := m.rag, m.ctx, m.opts
	return func() tea.Msg {
		if domain.IsGeneralDepartment(department) {
			department = ""
		}
		resp, err := rag.Ask(ctx, question, domain.AskOptions{
			TopK:         opts.TopK,
			Department:   department,
			UseGenerator: opts.UseGenerator,
		})
		return answerMsg{resp: resp, err: err}
	}
}

// refresh re-renders the viewport content.
func (m *Model) refresh() {
	switch {
	case m.err != nil:
		m.viewport.SetContent(m.styles.Error.Render("Error: " + m.err.Error()))
	case m.last != nil:
		m.viewport.SetContent(m.markdown.Render(answerMarkdown(m.last), m.viewport.Width))
	default:
		m.viewport.SetContent(m.styles.Muted.Render("Pregunta sobre vacaciones, beneficios, teletrabajo..."))
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Cargando..."
	}

	header := m.styles.Title.Render("Asistente de políticas")
	department := m.styles.Muted.Render("Departamento: ") + m.styles.Department.Render(m.Department())

	status := ""
	if m.loading {
		status = m.styles.Muted.Render("Buscando...")
	} else {
		help := make([]string, 0, 4)
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			help = append(help, fmt.Sprintf("%s %s", h.Key, h.Desc))
		}
		status = m.styles.Muted.Render(strings.Join(help, " · "))
	}

	return strings.Join([]string{
		header,
		department,
		m.styles.AnswerBox.Render(m.viewport.View()),
		m.styles.InputBox.Render(m.input.View()),
		status,
	}, "\n")
}

// Run starts the interactive program and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, rag driving.RAGService, opts Options) error {
	p := tea.NewProgram(New(ctx, rag, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

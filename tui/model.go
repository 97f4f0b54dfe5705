// Package tui is the terminal front-end for the todo API.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/example/todo-api/controller"
	domain "github.com/example/todo-api/domain/todo"
)

type mode int

const (
	modeBrowse mode = iota
	modeCreate
	modeEdit
	modeConfirmDelete
)

const (
	actionLoad     = "load"
	actionCreate   = "create"
	actionComplete = "complete"
	actionEdit     = "edit"
	actionDelete   = "delete"
)

// resultMsg reports the outcome of a controller operation run off the UI loop.
type resultMsg struct {
	action string
	err    error
}

// Model is the Bubble Tea model driving a controller.Controller.
type Model struct {
	ctrl    *controller.Controller
	timeout time.Duration

	keys   keyMap
	help   help.Model
	inputs []textinput.Model
	focus  int

	mode   mode
	cursor int
	busy   bool
	status string
	width  int
}

// New creates the model. timeout bounds each API request.
func New(ctrl *controller.Controller, timeout time.Duration) Model {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	title := textinput.New()
	title.Prompt = "Title: "
	title.Placeholder = "What needs doing?"
	title.CharLimit = 200

	desc := textinput.New()
	desc.Prompt = "Description: "
	desc.Placeholder = "optional"
	desc.CharLimit = 500

	return Model{
		ctrl:    ctrl,
		timeout: timeout,
		keys:    defaultKeyMap(),
		help:    help.New(),
		inputs:  []textinput.Model{title, desc},
	}
}

// Init loads the list.
func (m Model) Init() tea.Cmd {
	return m.run(actionLoad, m.ctrl.Mount)
}

func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return resultMsg{action: action, err: fn(ctx)}
	}
}

// rows are the visible todos: ongoing first, then completed.
func (m Model) rows() []domain.Todo {
	return append(m.ctrl.Ongoing(), m.ctrl.Completed()...)
}

func (m Model) selected() (domain.Todo, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return domain.Todo{}, false
	}
	return rows[m.cursor], true
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case resultMsg:
		return m.handleResult(msg), nil

	case tea.KeyMsg:
		switch m.mode {
		case modeCreate, modeEdit:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) handleResult(msg resultMsg) Model {
	m.busy = false
	m.status = ""
	// Failures are logged by the controller; the view keeps its state.
	if msg.err != nil {
		return m
	}

	switch msg.action {
	case actionLoad:
		m.status = fmt.Sprintf("%d todos loaded", m.ctrl.Snapshot().Len())
	case actionCreate:
		m.status = "Todo created"
		m.mode = modeBrowse
		m.resetInputs()
	case actionEdit:
		m.status = "Todo updated"
		m.mode = modeBrowse
		m.resetInputs()
	case actionComplete:
		m.status = "Todo completed"
	case actionDelete:
		m.status = "Todo deleted"
		m.mode = modeBrowse
	}

	if n := len(m.rows()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	return m
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Reload):
		m.busy = true
		return m, m.run(actionLoad, m.ctrl.Mount)
	case key.Matches(msg, m.keys.Add):
		m.ctrl.OpenCreate()
		m.mode = modeCreate
		m.resetInputs()
		cmd := m.focusInput(0)
		return m, cmd
	case key.Matches(msg, m.keys.Edit):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.OpenEdit(t.ID); err != nil {
			return m, nil
		}
		m.mode = modeEdit
		m.inputs[0].SetValue(t.Title)
		m.inputs[1].SetValue(t.Description)
		m.inputs[0].CursorEnd()
		cmd := m.focusInput(0)
		return m, cmd
	case key.Matches(msg, m.keys.Complete):
		t, ok := m.selected()
		if !ok || t.Status == domain.StatusCompleted {
			return m, nil
		}
		m.busy = true
		id := t.ID
		return m, m.run(actionComplete, func(ctx context.Context) error {
			return m.ctrl.ToggleComplete(ctx, id)
		})
	case key.Matches(msg, m.keys.Delete):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.ctrl.StageDelete(t.ID)
		m.mode = modeConfirmDelete
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEsc:
		if m.mode == modeCreate {
			m.ctrl.CloseCreate()
		} else {
			m.ctrl.CloseEdit()
		}
		m.mode = modeBrowse
		m.resetInputs()
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		cmd := m.focusInput((m.focus + 1) % len(m.inputs))
		return m, cmd
	case key.Matches(msg, m.keys.Submit):
		return m.submitForm()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.inputs[0].Value())
	desc := strings.TrimSpace(m.inputs[1].Value())
	m.busy = true

	if m.mode == modeCreate {
		_ = m.ctrl.SetCreateField(controller.FieldTitle, title)
		_ = m.ctrl.SetCreateField(controller.FieldDescription, desc)
		return m, m.run(actionCreate, m.ctrl.SubmitCreate)
	}

	_ = m.ctrl.SetEditField(controller.FieldTitle, title)
	_ = m.ctrl.SetEditField(controller.FieldDescription, desc)
	return m, m.run(actionEdit, m.ctrl.SubmitEdit)
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.busy = true
		return m, m.run(actionDelete, m.ctrl.ConfirmDelete)
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.CancelDelete()
		m.mode = modeBrowse
	}
	return m, nil
}

func (m *Model) focusInput(i int) tea.Cmd {
	m.focus = i
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	return m.inputs[i].Focus()
}

func (m *Model) resetInputs() {
	for j := range m.inputs {
		m.inputs[j].SetValue("")
		m.inputs[j].Blur()
	}
	m.focus = 0
}

// View implements tea.Model.
func (m Model) View() string {
	ongoing := m.ctrl.Ongoing()
	completed := m.ctrl.Completed()

	var b strings.Builder
	fmt.Fprintf(&b, "%s   %s %d  %s %d\n\n",
		titleStyle.Render("Todos"),
		pendingStyle.Render("•"), len(ongoing),
		successStyle.Render("✔"), len(completed),
	)

	b.WriteString(sectionStyle.Render("Ongoing") + "\n")
	m.renderRows(&b, ongoing, 0)
	b.WriteString("\n" + sectionStyle.Render("Completed") + "\n")
	m.renderRows(&b, completed, len(ongoing))

	switch m.mode {
	case modeCreate, modeEdit:
		heading := "New todo"
		if m.mode == modeEdit {
			heading = "Edit todo"
		}
		form := lipgloss.JoinVertical(lipgloss.Left, heading, m.inputs[0].View(), m.inputs[1].View())
		b.WriteString("\n" + panelStyle.Render(form) + "\n")
	case modeConfirmDelete:
		if id, ok := m.ctrl.PendingDelete(); ok {
			title := id
			if t, found := m.ctrl.Snapshot().Find(id); found {
				title = t.Title
			}
			b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Delete %q? (y/n)", title)) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString(mutedStyle.Render("Working...") + "\n")
	case m.status != "":
		b.WriteString(successStyle.Render("✔ "+m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))

	return panelStyle.Render(b.String())
}

func (m Model) renderRows(b *strings.Builder, todos []domain.Todo, offset int) {
	if len(todos) == 0 {
		b.WriteString(mutedStyle.Render("  (none)") + "\n")
		return
	}
	for i, t := range todos {
		box := mutedStyle.Render(boxUnchecked)
		text := t.Title
		if t.Status == domain.StatusCompleted {
			box = successStyle.Render(boxChecked)
			text = doneStyle.Render(t.Title)
		}
		if t.Description != "" {
			text += mutedStyle.Render("  " + t.Description)
		}

		prefix := "  "
		if offset+i == m.cursor && m.mode == modeBrowse {
			prefix = selectedStyle.Render(">") + " "
		}
		fmt.Fprintf(b, "%s%s %s\n", prefix, box, text)
	}
}

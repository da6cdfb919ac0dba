package tasklist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tasksync/internal/keys"
	tasksync "github.com/nhle/tasksync/internal/sync"
	"github.com/nhle/tasksync/internal/tasks"
	"github.com/nhle/tasksync/internal/theme"
)

// TasksFetchedMsg is sent when a fetch completes. On error the list keeps
// what it showed before.
type TasksFetchedMsg struct {
	Err error
}

// TaskDeletedMsg is sent when a delete request completes.
type TaskDeletedMsg struct {
	ID  int
	Err error
}

// Model is the interactive task list. It never edits its rows in place:
// after a delete it re-fetches and redraws from the fetched collection.
type Model struct {
	client     *tasks.Client
	poller     *tasksync.Poller
	userID     int
	email      string
	list       list.Model
	keys       *keys.KeyMap
	help       help.Model
	spinner    spinner.Model
	loading    bool
	showDetail bool
	status     string
	statusErr  bool
	width      int
	height     int
}

// New creates a task list for the given user.
func New(client *tasks.Client, userID int, email string, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, listHeight(height))
	l.Title = "Tasks"
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:  client,
		userID:  userID,
		email:   email,
		list:    l,
		keys:    k,
		help:    help.New(),
		spinner: sp,
		loading: true,
		width:   width,
		height:  height,
	}
}

// listHeight leaves room for the header, status bar, and help line.
func listHeight(height int) int {
	h := height - 4
	if h < 1 {
		return 1
	}
	return h
}

// WithPoller returns a copy of m that also shows background refreshes
// from p. The poller is started by Init; the caller stops it.
func (m Model) WithPoller(p *tasksync.Poller) Model {
	m.poller = p
	return m
}

// Init starts the first fetch. The model is created in the loading state.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.fetch()}
	if m.poller != nil {
		cmds = append(cmds, m.poller.Start())
	}
	return tea.Batch(cmds...)
}

// startFetch marks the model as loading and returns the fetch command.
func (m *Model) startFetch() tea.Cmd {
	m.loading = true
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// fetch returns a command that replaces the client's collection.
func (m Model) fetch() tea.Cmd {
	client, userID := m.client, m.userID
	return func() tea.Msg {
		return TasksFetchedMsg{Err: client.FetchTasks(context.Background(), userID)}
	}
}

// deleteTask returns a command that deletes id on the server.
func (m Model) deleteTask(id int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return TaskDeletedMsg{ID: id, Err: client.DeleteTask(context.Background(), id)}
	}
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case TasksFetchedMsg:
		m.loading = false
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Refresh failed: %v", msg.Err), true)
			return m, nil
		}
		return m, m.syncItems()

	case TaskDeletedMsg:
		if msg.Err != nil {
			m.loading = false
			m.setStatus(fmt.Sprintf("Delete failed: %v", msg.Err), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Deleted task %d", msg.ID), false)
		return m, m.startFetch()

	case tasksync.ResultMsg:
		wait := m.poller.WaitForNextResult()
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Background refresh failed: %v", msg.Err), true)
			return m, wait
		}
		if msg.NewTaskCount > 0 {
			m.setStatus(fmt.Sprintf("%d new task(s)", msg.NewTaskCount), false)
		}
		return m, tea.Batch(m.syncItems(), wait)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleKeys processes key input.
func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Select):
		m.showDetail = !m.showDetail
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.loading {
			return m, nil
		}
		m.setStatus("", false)
		return m, m.startFetch()

	case key.Matches(msg, m.keys.Delete):
		item, ok := m.list.SelectedItem().(TaskItem)
		if !ok || m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.deleteTask(item.Task.ID))
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// syncItems rebuilds the list rows from the client's collection.
func (m *Model) syncItems() tea.Cmd {
	current := m.client.Tasks()
	items := make([]list.Item, len(current))
	for i, t := range current {
		items[i] = TaskItem{Task: t}
	}
	return m.list.SetItems(items)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// View renders the task list view.
func (m Model) View() string {
	var body string
	if len(m.list.Items()) == 0 && !m.loading {
		body = m.renderEmptyState()
	} else {
		body = m.list.View()
	}

	if m.showDetail {
		if item, ok := m.list.SelectedItem().(TaskItem); ok {
			body = lipgloss.JoinVertical(lipgloss.Left, body, renderDetail(item, m.width))
		}
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
		m.help.View(m.keys),
	)
}

// renderEmptyState shows guidance text when no tasks are available.
func (m Model) renderEmptyState() string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(listHeight(m.height)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render("No tasks yet.\n\nAdd one with: tasksync add")
}

// renderHeader renders the title bar with the signed-in user on the right.
func (m Model) renderHeader() string {
	title := theme.HeaderStyle.Render("Tasks")
	user := theme.HeaderStyle.Render(m.email)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(user)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, title, filler, user)
}

// renderStatusBar shows the spinner while a request is outstanding, the
// last status message otherwise.
func (m Model) renderStatusBar() string {
	text := fmt.Sprintf("%d tasks", len(m.list.Items()))
	switch {
	case m.loading:
		text = m.spinner.View() + " syncing…"
	case m.status != "" && m.statusErr:
		return theme.ErrorStyle.Render(m.status)
	case m.status != "":
		text = m.status
	}
	return theme.StatusBarStyle.Render(text)
}

// renderDetail shows the description of the selected task.
func renderDetail(item TaskItem, width int) string {
	desc := item.Task.Description
	if desc == "" {
		desc = "(no description)"
	}
	style := theme.DetailPanelStyle
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(desc)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
	m.help.Width = width
}

// Loading reports whether a request is outstanding.
func (m Model) Loading() bool {
	return m.loading
}

// Status returns the last status message and whether it reports a failure.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// Program wraps Model as a standalone tea.Model for tea.NewProgram.
type Program struct {
	Model
}

// Update satisfies tea.Model.
func (p Program) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := p.Model.Update(msg)
	return Program{Model: m}, cmd
}

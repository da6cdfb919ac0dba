package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"github.com/nhle/tasksync/internal/auth"
	"github.com/nhle/tasksync/internal/keys"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
	tasksync "github.com/nhle/tasksync/internal/sync"
	"github.com/nhle/tasksync/internal/theme"
	"github.com/nhle/tasksync/internal/ui/prompt"
	"github.com/nhle/tasksync/internal/ui/tasklist"
)

// command runs one subcommand. a is nil for commands that do not need
// the service wiring.
type command func(ctx context.Context, a *app, opts *globalOptions, args []string, out io.Writer) error

var commands = map[string]command{
	"login":    runLogin,
	"register": runRegister,
	"logout":   runLogout,
	"whoami":   runWhoami,
	"list":     runList,
	"add":      runAdd,
	"delete":   runDelete,
	"browse":   runBrowse,
	"config":   runConfig,
}

func newFlagSet(name string, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func runLogin(ctx context.Context, a *app, _ *globalOptions, args []string, out io.Writer) error {
	var creds prompt.Credentials
	fs := newFlagSet("login", out)
	fs.StringVar(&creds.Email, "email", "", "account email")
	fs.StringVar(&creds.Password, "password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if creds.Email == "" || creds.Password == "" {
		if err := prompt.Run(prompt.LoginForm(&creds)); err != nil {
			return err
		}
	}

	if err := a.auth.Login(ctx, model.NewUser(creds.Email, creds.Password)); err != nil {
		if errors.Is(err, auth.ErrLoginFailed) {
			a.logger.Debug("login error chain", "error", err)
			return auth.ErrLoginFailed
		}
		return err
	}

	u, _ := a.session.CurrentUser()
	fmt.Fprintf(out, "Logged in as %s\n", u.Email)
	return nil
}

func runRegister(ctx context.Context, a *app, _ *globalOptions, args []string, out io.Writer) error {
	var creds prompt.Credentials
	fs := newFlagSet("register", out)
	fs.StringVar(&creds.Email, "email", "", "account email")
	fs.StringVar(&creds.Password, "password", "", "account password")
	fs.StringVar(&creds.ConfirmPassword, "confirm", "", "password confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if creds.Email == "" || creds.Password == "" {
		if err := prompt.Run(prompt.RegisterForm(&creds)); err != nil {
			return err
		}
	}

	err := a.auth.RegisterWithConfirmation(ctx, creds.Email, creds.Password, creds.ConfirmPassword)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Registration successful. Log in with `tasksync login`.")
	return nil
}

func runLogout(ctx context.Context, a *app, _ *globalOptions, args []string, out io.Writer) error {
	fs := newFlagSet("logout", out)
	yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, id, err := a.currentUser()
	if err != nil {
		return err
	}

	if !*yes {
		confirmed := false
		if err := prompt.Run(prompt.ConfirmLogoutForm(&confirmed)); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
	}

	if err := a.auth.Logout(); err != nil {
		return err
	}
	a.tasks.Reset()
	if err := a.db.DeleteTaskSnapshot(ctx, id); err != nil {
		a.logger.Warn("removing cached tasks", "user_id", id, "error", err)
	}

	fmt.Fprintf(out, "Logged out %s\n", u.Email)
	return nil
}

func runWhoami(_ context.Context, a *app, _ *globalOptions, _ []string, out io.Writer) error {
	u, id, err := a.currentUser()
	if err != nil {
		fmt.Fprintln(out, "not logged in")
		return errSilent
	}
	fmt.Fprintf(out, "%s (id %d)\n", u.Email, id)
	return nil
}

func runList(ctx context.Context, a *app, _ *globalOptions, args []string, out io.Writer) error {
	fs := newFlagSet("list", out)
	cached := fs.Bool("cached", false, "show the last fetched list without contacting the server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, id, err := a.currentUser()
	if err != nil {
		return err
	}

	if *cached {
		snap, err := a.tasks.CachedTasks(ctx, id)
		if errors.Is(err, store.ErrNoSnapshot) {
			return errors.New("no cached tasks; run `tasksync list` first")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderTasks(snap.Tasks))
		fmt.Fprintf(out, "(cached %s)\n", model.FormatCreatedAt(snap.FetchedAt))
		return nil
	}

	if err := a.tasks.FetchTasks(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(out, renderTasks(a.tasks.Tasks()))
	return nil
}

func runAdd(ctx context.Context, a *app, _ *globalOptions, args []string, out io.Writer) error {
	var in prompt.TaskInput
	fs := newFlagSet("add", out)
	fs.StringVarP(&in.Title, "title", "t", "", "task title")
	fs.StringVarP(&in.Description, "description", "d", "", "task description")
	fs.BoolVarP(&in.IsCompleted, "completed", "c", false, "mark the task completed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, id, err := a.currentUser()
	if err != nil {
		return err
	}

	if in.Title == "" {
		if err := prompt.Run(prompt.TaskForm(&in)); err != nil {
			return err
		}
	}

	task := model.Task{
		UserID:      id,
		Title:       in.Title,
		Description: in.Description,
		IsCompleted: in.IsCompleted,
	}
	if err := a.tasks.AddAndRefresh(ctx, task); err != nil {
		return err
	}

	fmt.Fprintln(out, renderTasks(a.tasks.Tasks()))
	return nil
}

func runDelete(ctx context.Context, a *app, _ *globalOptions, args []string, out io.Writer) error {
	fs := newFlagSet("delete", out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: tasksync delete <task-id>")
	}
	taskID, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid task id %q", fs.Arg(0))
	}

	_, id, err := a.currentUser()
	if err != nil {
		return err
	}

	if err := a.tasks.DeleteAndRefresh(ctx, taskID, id); err != nil {
		return err
	}

	fmt.Fprintf(out, "Deleted task %d\n", taskID)
	fmt.Fprintln(out, renderTasks(a.tasks.Tasks()))
	return nil
}

func runBrowse(ctx context.Context, a *app, _ *globalOptions, _ []string, _ io.Writer) error {
	u, id, err := a.currentUser()
	if err != nil {
		return err
	}

	m := tasklist.New(a.tasks, id, u.Email, keys.DefaultKeyMap(), 80, 24)
	if interval := a.cfg.Browse.RefreshInterval(); interval > 0 {
		poller := tasksync.New(a.tasks, id, interval, a.logger)
		defer poller.Stop()
		m = m.WithPoller(poller)
	}

	p := tea.NewProgram(tasklist.Program{Model: m}, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running task browser: %w", err)
	}
	return nil
}

func runConfig(_ context.Context, _ *app, opts *globalOptions, args []string, out io.Writer) error {
	if len(args) != 1 || args[0] != "init" {
		return errors.New("usage: tasksync config init")
	}

	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.backend != "" {
		cfg.Session.Backend = opts.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := model.SaveConfig(opts.configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", opts.configPath)
	return nil
}

// renderTasks formats tasks as a table in server order.
func renderTasks(tasks []model.Task) string {
	if len(tasks) == 0 {
		return theme.HelpStyle.Render("No tasks yet.")
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			theme.CompletionMark(t.IsCompleted),
			t.Title,
			t.Description,
			t.CreatedAt,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("ID", "", "TITLE", "DESCRIPTION", "CREATED").
		Rows(rows...).
		String()
}

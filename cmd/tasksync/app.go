package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/auth"
	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/session"
	"github.com/nhle/tasksync/internal/store"
	"github.com/nhle/tasksync/internal/tasks"
)

// app is the wired set of components one invocation works with.
type app struct {
	cfg     *model.AppConfig
	logger  *slog.Logger
	db      *store.SQLiteStore
	session *session.Session
	auth    *auth.Client
	tasks   *tasks.Client
}

func newApp(opts *globalOptions, stderr io.Writer) (*app, error) {
	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.backend != "" {
		cfg.Session.Backend = opts.backend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := newLogger(cfg.Log.Level, opts.verbose, stderr)

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	backend, err := sessionBackend(cfg.Session, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	apiClient := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout()),
		api.WithLogger(logger),
	)

	sess := session.New()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		session: sess,
		auth:    auth.NewClient(apiClient, sess, session.NewStore(backend, logger), logger),
		tasks: tasks.NewClient(apiClient,
			tasks.WithLogger(logger),
			tasks.WithSnapshots(db),
		),
	}

	// Every invocation is a fresh process: pick up the stored session.
	a.auth.CheckExistingSession()

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// currentUser returns the signed-in user and their id.
func (a *app) currentUser() (model.User, int, error) {
	id, err := a.session.UserID()
	if err != nil {
		return model.User{}, 0, fmt.Errorf("%w: run `tasksync login` first", err)
	}
	u, _ := a.session.CurrentUser()
	return u, id, nil
}

func sessionBackend(cfg model.SessionConfig, db *store.SQLiteStore) (session.Backend, error) {
	switch cfg.Backend {
	case model.SessionBackendSQLite:
		return db, nil
	case model.SessionBackendMemory:
		return session.NewMemoryBackend(), nil
	default:
		b, err := credential.Open(cfg.FileDir)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func newLogger(level string, verbose bool, w io.Writer) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

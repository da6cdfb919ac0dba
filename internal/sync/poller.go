// Package sync refreshes a user's task list in the background while the
// interactive browser is open.
package sync

import (
	"context"
	"io"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tasksync/internal/tasks"
)

// State is the state of the most recent refresh.
type State int

const (
	Idle State = iota
	Running
	Failed
)

// Status describes the poller's last refresh.
type Status struct {
	State    State
	LastSync time.Time
	Error    error
}

// ResultMsg is a tea.Msg sent when a background refresh completes. The
// fetched tasks are read from the task client, not carried here.
type ResultMsg struct {
	UserID       int
	Count        int
	NewTaskCount int
	Err          error
}

// fetchTimeout bounds a single background fetch.
const fetchTimeout = 30 * time.Second

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 60 * time.Second

// Poller periodically re-fetches one user's tasks through a task client.
type Poller struct {
	client   *tasks.Client
	userID   int
	interval time.Duration
	logger   *slog.Logger

	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	status  Status
	running bool
}

// New creates a poller for userID. A nil logger discards output.
func New(client *tasks.Client, userID int, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		client:    client,
		userID:    userID,
		interval:  interval,
		logger:    logger,
		resultCh:  make(chan ResultMsg, 4),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a command that waits
// for the first result. The first fetch happens after one interval;
// callers load the initial list themselves.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// Refresh asks for an immediate fetch. It never blocks; a request made
// while another is pending is folded into it.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the last refresh.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

// WaitForNextResult returns a command that waits for the next refresh.
// Call it after handling each ResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetch()
		case <-p.triggerCh:
			p.fetch()
		}
	}
}

// fetch re-fetches the list and reports how many tasks were not in the
// previous collection.
func (p *Poller) fetch() {
	p.setStatus(Running, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	seen := make(map[int]bool)
	for _, t := range p.client.Tasks() {
		seen[t.ID] = true
	}

	if err := p.client.FetchTasks(ctx, p.userID); err != nil {
		p.setStatus(Failed, err)
		p.sendResult(ResultMsg{UserID: p.userID, Err: err})
		return
	}

	current := p.client.Tasks()
	newCount := 0
	for _, t := range current {
		if !seen[t.ID] {
			newCount++
		}
	}

	p.setStatus(Idle, nil)
	p.logger.Debug("background refresh", "user_id", p.userID, "count", len(current), "new", newCount)
	p.sendResult(ResultMsg{
		UserID:       p.userID,
		Count:        len(current),
		NewTaskCount: newCount,
	})
}

func (p *Poller) setStatus(state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == Idle {
		p.status.LastSync = time.Now()
	}
}

// sendResult drops the message when nobody is listening.
func (p *Poller) sendResult(msg ResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-p.stopCh:
			return nil
		}
	}
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
)

// eventBufferSize absorbs bursts from concurrent pipeline workers so
// emit rarely has to drop an event.
const eventBufferSize = 64

// maxLogLines bounds the event log to prevent unbounded growth on
// large runs.
const maxLogLines = 200

// Layout constants for viewport height calculation.
const (
	headerLines = 3 // title + spinner line + progress line
	helpLines   = 1
	minViewport = 3
	maxViewport = 12
)

// workEvent is a discriminated union for everything the work goroutine
// reports. Exactly one of the fields is meaningful per event.
type workEvent struct {
	event Event
	err   error
	done  bool
}

// Bubble Tea message types for work progress.
type workStartedMsg struct {
	eventCh <-chan workEvent
}

type workEventMsg struct {
	event Event
}

type workDoneMsg struct{}

type workErrorMsg struct {
	err error
}

// Model is the Bubble Tea model for a single run.
type Model struct {
	title string

	// Work management. ctx is the work's context; cancel aborts it.
	// The model quits once the completion event arrives, not before,
	// so partial state is never reported as success.
	ctx      context.Context
	cancel   context.CancelFunc
	work     WorkFunc
	eventCh  <-chan workEvent
	canceled bool

	// Latest progress.
	stage    string
	message  string
	current  int
	total    int
	logLines []string

	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	// Reusable buffer for View() to reduce allocations.
	viewBuf strings.Builder

	done bool
	err  error

	width  int
	styles Styles
}

// newModel builds the model. The work starts from Init.
func newModel(ctx context.Context, cancel context.CancelFunc, title string, work WorkFunc) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	pb := progress.New(progress.WithDefaultBlend())

	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(minViewport))
	vp.KeyMap = viewport.KeyMap{} // keys are routed explicitly in handleKey

	return &Model{
		title:    title,
		ctx:      ctx,
		cancel:   cancel,
		work:     work,
		spinner:  sp,
		progress: pb,
		viewport: vp,
		styles:   DefaultStyles(),
		width:    80,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startWork())
}

// startWork launches the work goroutine and returns the message that
// hands its event channel to the model.
//
// Goroutine lifecycle: the goroutine exits when the work returns, and
// channel closure signals that no further events follow. Progress
// events are best-effort; the completion event is sent with a
// ctx.Done fallback so the goroutine never outlives an abandoned UI.
func (m *Model) startWork() tea.Cmd {
	ctx, work := m.ctx, m.work
	return func() tea.Msg {
		eventCh := make(chan workEvent, eventBufferSize)

		go func() {
			defer close(eventCh)

			err := work(ctx, func(e Event) {
				select {
				case eventCh <- workEvent{event: e}:
				default: // don't block the pipeline on a busy UI
				}
			})

			final := workEvent{done: true}
			if err != nil {
				final = workEvent{err: err}
			}
			select {
			case eventCh <- final:
			case <-ctx.Done():
			}
		}()

		return workStartedMsg{eventCh: eventCh}
	}
}

// listenForWork waits for the next work event. Closure without a
// completion event is itself an error.
func listenForWork(eventCh <-chan workEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}

		event, ok := <-eventCh
		if !ok {
			return workErrorMsg{err: fmt.Errorf("work ended without completion signal")}
		}
		switch {
		case event.err != nil:
			return workErrorMsg{err: event.err}
		case event.done:
			return workDoneMsg{}
		default:
			return workEventMsg{event: event.event}
		}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.SetWidth(min(msg.Width-10, 60))
		m.viewport.SetWidth(msg.Width)
		vpHeight := max(msg.Height-headerLines-helpLines, minViewport)
		m.viewport.SetHeight(min(vpHeight, maxViewport))
		m.rebuildViewportContent()
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case workStartedMsg:
		m.eventCh = msg.eventCh
		return m, listenForWork(msg.eventCh)

	case workEventMsg:
		m.applyEvent(msg.event)
		return m, listenForWork(m.eventCh)

	case workDoneMsg:
		m.done = true
		return m, tea.Quit

	case workErrorMsg:
		m.done = true
		if m.canceled {
			// The cancel race can surface as a closure error; report
			// what actually happened.
			m.err = context.Canceled
		} else {
			m.err = msg.err
		}
		return m, tea.Quit
	}

	return m, nil
}

// handleKey cancels on ctrl+c, esc or q; other keys scroll the log.
func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "q":
		if m.done {
			return m, tea.Quit
		}
		if !m.canceled {
			m.canceled = true
			m.cancel()
			m.appendLog("canceling, waiting for workers to stop")
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// applyEvent folds a progress event into the model.
func (m *Model) applyEvent(e Event) {
	if e.Stage != "" {
		m.stage = e.Stage
	}
	if e.Message != "" {
		m.message = e.Message
	}
	m.current = e.Current
	m.total = e.Total

	if e.Message != "" {
		line := e.Message
		if e.Total > 0 {
			line = fmt.Sprintf("%s (%d/%d)", e.Message, e.Current, e.Total)
		}
		if e.Stage != "" {
			line = fmt.Sprintf("[%s] %s", e.Stage, line)
		}
		m.appendLog(line)
	}
}

// appendLog appends a line and enforces the maxLogLines bound.
func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
}

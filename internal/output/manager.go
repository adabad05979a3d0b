package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tanq16/mediastitch/internal/utils"
)

// Unit tells the display how to render progress counts.
type Unit int

const (
	UnitBytes Unit = iota
	UnitSegments
)

const (
	statusPending = "pending"
	statusActive  = "active"
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

type task struct {
	id       int
	label    string
	status   string
	message  string
	stream   []string
	complete bool
	start    time.Time
	updated  time.Time
	err      error
}

// ErrorReport is one failed task kept for the summary.
type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders the state of concurrent jobs. With a live writer it
// redraws in place on every tick; otherwise it only prints finished tasks.
type Manager struct {
	mu          sync.RWMutex
	out         io.Writer
	live        bool
	tasks       []*task
	errors      []ErrorReport
	numLines    int
	maxStreams  int
	paused      bool
	displayTick time.Duration
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
	stopOnce    sync.Once
	now         func() time.Time
}

// NewManager writes to stdout, redrawing only when stdout is a terminal.
func NewManager() *Manager {
	return NewManagerTo(os.Stdout, IsTerminal())
}

func NewManagerTo(w io.Writer, live bool) *Manager {
	return &Manager{
		out:         w,
		live:        live,
		maxStreams:  6,
		displayTick: 300 * time.Millisecond,
		doneCh:      make(chan struct{}),
		now:         time.Now,
	}
}

func (m *Manager) get(id int) *task {
	if id < 1 || id > len(m.tasks) {
		return nil
	}
	return m.tasks[id-1]
}

// Register adds a pending task and returns its id.
func (m *Manager) Register(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.tasks = append(m.tasks, &task{
		id:      len(m.tasks) + 1,
		label:   label,
		status:  statusPending,
		start:   now,
		updated: now,
	})
	return len(m.tasks)
}

func (m *Manager) SetMessage(id int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.get(id); t != nil && !t.complete {
		t.message = message
		t.status = statusActive
		t.updated = m.now()
	}
}

// SetProgress replaces the task's stream with a progress line.
func (m *Manager) SetProgress(id int, done, total int64, unit Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.get(id)
	if t == nil || t.complete {
		return
	}
	var detail string
	switch unit {
	case UnitSegments:
		detail = fmt.Sprintf("%d/%d segments", done, total)
	default:
		elapsed := m.now().Sub(t.start).Seconds()
		if total > 0 {
			detail = fmt.Sprintf("%s / %s %s %s", formatSize(done), formatSize(total), StyleSymbols["bullet"], FormatSpeed(done, elapsed))
		} else {
			detail = fmt.Sprintf("%s %s %s", formatSize(done), StyleSymbols["bullet"], FormatSpeed(done, elapsed))
		}
	}
	t.stream = []string{ProgressBar(done, total, 30) + detail}
	t.status = statusActive
	t.updated = m.now()
}

// AddStreamLine appends a wrapped line under the task.
func (m *Manager) AddStreamLine(id int, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.get(id)
	if t == nil {
		return
	}
	width, _ := terminalSize()
	t.stream = append(t.stream, wrapText(line, 6, width)...)
	if len(t.stream) > m.maxStreams {
		t.stream = t.stream[len(t.stream)-m.maxStreams:]
	}
	t.updated = m.now()
}

func (m *Manager) Complete(id int, message string) {
	m.finish(id, statusSuccess, message, nil)
}

// Warn ends a task that stopped without failing, such as a user stop.
func (m *Manager) Warn(id int, message string) {
	m.finish(id, statusWarning, message, nil)
}

func (m *Manager) ReportError(id int, err error) {
	m.finish(id, statusError, "", err)
}

func (m *Manager) finish(id int, status, message string, err error) {
	m.mu.Lock()
	t := m.get(id)
	if t == nil || t.complete {
		m.mu.Unlock()
		return
	}
	t.complete = true
	t.status = status
	t.stream = nil
	t.updated = m.now()
	t.err = err
	switch {
	case message != "":
		t.message = message
	case err != nil:
		t.message = "Failed " + t.label
	default:
		t.message = "Completed " + t.label
	}
	if err != nil {
		m.errors = append(m.errors, ErrorReport{Label: t.label, Error: err, Time: t.updated})
	}
	line := m.taskLine(t)
	live := m.live
	m.mu.Unlock()
	if !live {
		fmt.Fprintln(m.out, line)
	}
}

// SetPaused marks every active task as paused in the display.
func (m *Manager) SetPaused(paused bool) {
	m.mu.Lock()
	m.paused = paused
	live := m.live
	m.mu.Unlock()
	if !live {
		if paused {
			fmt.Fprintln(m.out, FWarning("  "+StyleSymbols["paused"]+" paused"))
		} else {
			fmt.Fprintln(m.out, FInfo("  "+StyleSymbols["arrow"]+" resumed"))
		}
	}
}

func (m *Manager) indicator(status string) string {
	switch status {
	case statusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case statusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case statusWarning:
		return warningStyle.Render(StyleSymbols["warning"])
	case statusPending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		if m.paused {
			return warningStyle.Render(StyleSymbols["paused"])
		}
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) taskLine(t *task) string {
	elapsed := m.now().Sub(t.start)
	if t.complete {
		elapsed = t.updated.Sub(t.start)
	}
	var msg string
	switch t.status {
	case statusSuccess:
		msg = successStyle.Render(t.message)
	case statusError:
		msg = errorStyle.Render(t.message)
	case statusWarning:
		msg = warningStyle.Render(t.message)
	case statusPending:
		msg = pendingStyle.Render("Waiting " + t.label)
	default:
		msg = pendingStyle.Render(t.message)
	}
	return fmt.Sprintf("  %s %s %s", m.indicator(t.status), debugStyle.Render(elapsed.Round(time.Second).String()), msg)
}

func (m *Manager) render() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, height := terminalSize()
	available := height - 3

	var lines []string
	var done []*task
	for _, t := range m.tasks {
		if t.complete {
			done = append(done, t)
			continue
		}
		lines = append(lines, m.taskLine(t))
		for _, s := range t.stream {
			lines = append(lines, "      "+streamStyle.Render(s))
		}
	}
	room := max(0, available-len(lines))
	if len(done) > room {
		hidden := len(done) - room
		done = done[hidden:]
		if room > 0 {
			done = done[1:]
			lines = append(lines, infoStyle.Render(fmt.Sprintf("  %d jobs finished earlier ...", hidden+1)))
		}
	}
	for _, t := range done {
		lines = append(lines, m.taskLine(t))
	}
	if len(lines) > available {
		lines = lines[:max(0, available)]
	}

	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, l := range lines {
		fmt.Fprintln(m.out, l)
	}
	m.numLines = len(lines)
}

// StartDisplay begins periodic redraws when the writer is live.
func (m *Manager) StartDisplay() {
	if !m.live {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.render()
			case <-m.doneCh:
				m.render()
				return
			}
		}
	}()
}

// StopDisplay draws the final state and the summary. Safe to call twice.
func (m *Manager) StopDisplay() {
	m.stopOnce.Do(func() {
		close(m.doneCh)
		m.displayWg.Wait()
		m.ShowSummary()
	})
}

// Counts returns how many tasks succeeded and failed.
func (m *Manager) Counts() (success, failed, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		switch t.status {
		case statusSuccess:
			success++
		case statusError:
			failed++
		}
	}
	return success, failed, len(m.tasks)
}

func (m *Manager) ShowSummary() {
	success, failed, total := m.Counts()
	m.mu.RLock()
	defer m.mu.RUnlock()
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if failed > 0 {
		fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, total)))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
		for i, e := range m.errors {
			fmt.Fprintf(m.out, "    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05"))),
				errorStyle.Render(e.Label))
			fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", e.Error)))
		}
	}
	fmt.Fprintln(m.out)
}

func formatSize(n int64) string {
	return utils.FormatBytes(uint64(max(n, 0)))
}

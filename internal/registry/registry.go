// Package registry owns the sessions and name-index tables, their single
// exclusion domain, and the per-session output pump that feeds the
// scrollback ring and fans out to attached stream subscribers.
package registry

import (
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"termrt/internal/apperr"
	"termrt/internal/config"
	"termrt/internal/pty"
	"termrt/internal/scrollback"
)

// execWaitLineBound bounds how many trailing scrollback lines exec_wait
// may return.
const execWaitLineBound = 100

type entry struct {
	mu         sync.Mutex
	info       Session
	lastOutput time.Time

	handle   *pty.Handle
	buffer   *scrollback.Ring
	bc       *broadcaster
	pumpDone chan struct{}
}

func (e *entry) snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.info
	if e.info.ExitCode != nil {
		v := *e.info.ExitCode
		s.ExitCode = &v
	}
	return s
}

// Registry owns the live session table. All table mutation goes through mu;
// mu is never held across PTY I/O.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	nameIndex map[string]string

	maxSessions     int
	workspace       string
	defaultShell    string
	scrollbackLines int

	log *logrus.Logger
}

// New creates an empty Registry configured from cfg.
func New(cfg *config.Config, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		sessions:        make(map[string]*entry),
		nameIndex:       make(map[string]string),
		maxSessions:     cfg.MaxSessions,
		workspace:       cfg.Workspace,
		defaultShell:    cfg.DefaultShell,
		scrollbackLines: cfg.ScrollbackLines,
		log:             log,
	}
}

// Create spawns a new session. It follows an
// acquire/prepare/release/spawn/acquire/insert/release pattern so that a
// failure between the two critical sections never publishes partial
// state.
func (r *Registry) Create(cfg CreateConfig) (*Session, error) {
	if cfg.Name == "" {
		return nil, apperr.BadRequestf("name is required")
	}
	cols := cfg.Cols
	if cols == 0 {
		cols = config.DefaultCols
	}
	rows := cfg.Rows
	if rows == 0 {
		rows = config.DefaultRows
	}
	cwd := cfg.CWD
	if cwd == "" {
		cwd = r.workspace
	}
	shell := cfg.Shell
	if shell == "" {
		shell = r.defaultShell
	}

	if err := r.checkCapacityAndName(cfg.Name); err != nil {
		return nil, err
	}

	handle, err := pty.Spawn(shell, cwd, cols, rows, cfg.Env)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	e := &entry{
		info: Session{
			ID:        id,
			Name:      cfg.Name,
			CWD:       cwd,
			Shell:     shell,
			Cols:      cols,
			Rows:      rows,
			CreatedAt: time.Now(),
			Status:    StatusStarting,
			Pid:       handle.Pid(),
		},
		lastOutput: time.Now(),
		handle:     handle,
		buffer:     scrollback.New(r.scrollbackLines),
		bc:         newBroadcaster(),
		pumpDone:   make(chan struct{}),
	}

	r.mu.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		handle.Release()
		return nil, apperr.ResourceExhaustedf("max_sessions (%d) reached", r.maxSessions)
	}
	if _, exists := r.nameIndex[cfg.Name]; exists {
		r.mu.Unlock()
		handle.Release()
		return nil, apperr.Conflictf("session %q already exists", cfg.Name)
	}
	e.info.Status = StatusRunning
	r.sessions[id] = e
	r.nameIndex[cfg.Name] = id
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"session_id": id, "name": cfg.Name, "pid": e.info.Pid}).Info("session created")

	go r.pump(id, e)

	snap := e.snapshot()
	return &snap, nil
}

func (r *Registry) checkCapacityAndName(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.maxSessions {
		return apperr.ResourceExhaustedf("max_sessions (%d) reached", r.maxSessions)
	}
	if _, exists := r.nameIndex[name]; exists {
		return apperr.Conflictf("session %q already exists", name)
	}
	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.NotFoundf("session %q not found", id)
	}
	return e, nil
}

// Get returns a snapshot of the session, or NotFound.
func (r *Registry) Get(id string) (*Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	s := e.snapshot()
	return &s, nil
}

// ResolveName returns the id currently bound to name, if any.
func (r *Registry) ResolveName(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.nameIndex[name]
	return id, ok
}

// GetByName resolves name to an id and returns its snapshot.
func (r *Registry) GetByName(name string) (*Session, error) {
	id, ok := r.ResolveName(name)
	if !ok {
		return nil, apperr.NotFoundf("session %q not found", name)
	}
	return r.Get(id)
}

// List returns a snapshot of every session, including ones whose child has
// already exited but haven't been reaped yet.
func (r *Registry) List() []Session {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

// Exec writes command + "\n" to the PTY.
func (r *Registry) Exec(id, command string) error {
	_, err := r.Write(id, []byte(command+"\n"))
	return err
}

// Write raw-writes bytes to the PTY with no implicit newline, returning the
// number of bytes actually accepted by the kernel.
func (r *Registry) Write(id string, data []byte) (int, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	n, werr := e.handle.Write(data)
	if werr != nil {
		if errors.Is(werr, pty.ErrWriteTimeout) {
			return n, apperr.Timeoutf("write to session %q timed out", id)
		}
		return n, apperr.Io("write", werr)
	}
	return n, nil
}

// ExecWait issues Exec, then always sleeps the full timeout before
// returning the scrollback's current tail. It never short-circuits on
// output having stabilized, and it returns only whatever is in the ring at
// the end, not a delta. This is deliberate, not a missed optimization: a
// caller relying on exec_wait for timing needs the wait to be predictable.
func (r *Registry) ExecWait(id, command string, timeout time.Duration) (string, time.Duration, error) {
	start := time.Now()
	if err := r.Exec(id, command); err != nil {
		return "", time.Since(start), err
	}
	time.Sleep(timeout)

	e, err := r.lookup(id)
	if err != nil {
		return "", time.Since(start), err
	}
	lines := e.buffer.GetRecent(execWaitLineBound)
	output := joinLines(lines)
	return output, time.Since(start), nil
}

func joinLines(lines []string) string {
	total := 0
	for i, l := range lines {
		total += len(l)
		if i > 0 {
			total++
		}
	}
	buf := make([]byte, 0, total)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

// Resize updates the PTY window size and the stored dimensions atomically
// with respect to a concurrent Get.
func (r *Registry) Resize(id string, cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return apperr.BadRequestf("cols and rows must both be >= 1")
	}
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.handle.Resize(cols, rows); err != nil {
		return err
	}
	e.info.Cols = cols
	e.info.Rows = rows
	return nil
}

// Kill removes the session from both tables, releases its PTY resources,
// and joins the pump. Table removal is synchronous with respect to the
// return of Kill; resource release may lag no further than the pump's
// next wake.
func (r *Registry) Kill(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		delete(r.nameIndex, e.info.Name)
	}
	r.mu.Unlock()
	if !ok {
		return apperr.NotFoundf("session %q not found", id)
	}

	e.handle.Release()
	e.bc.closeAll()
	<-e.pumpDone

	r.log.WithField("session_id", id).Info("session killed")
	return nil
}

// GetBuffer returns the whole scrollback (n == nil) or its last n lines.
func (r *Registry) GetBuffer(id string, n *int) ([]string, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return e.buffer.GetAll(), nil
	}
	return e.buffer.GetRecent(*n), nil
}

// FlushBuffer clears the scrollback.
func (r *Registry) FlushBuffer(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.buffer.Clear()
	return nil
}

// Subscribe attaches a new stream subscriber to id, returning it along with
// a replay of the recent scrollback so a reconnecting peer sees continuity
// before live tailing begins.
func (r *Registry) Subscribe(id string) (*Subscriber, []string, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	sub := e.bc.Subscribe()
	replay := e.buffer.GetRecent(execWaitLineBound)
	return sub, replay, nil
}

// Unsubscribe detaches sub from id. A no-op if id is already gone.
func (r *Registry) Unsubscribe(id string, sub *Subscriber) {
	e, err := r.lookup(id)
	if err != nil {
		return
	}
	e.bc.Unsubscribe(sub)
}

// pump is the sole reader of a session's PTY master: it is the one producer
// into the scrollback, and it fans bytes out to any attached transports.
func (r *Registry) pump(id string, e *entry) {
	defer close(e.pumpDone)

	buf := make([]byte, 4096)
	for {
		n, err := e.handle.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			e.buffer.Push(data)
			e.mu.Lock()
			e.lastOutput = time.Now()
			e.mu.Unlock()

			e.bc.broadcast(data)
		}
		if err != nil {
			r.onPumpExit(id, e, err)
			return
		}
	}
}

// onPumpExit reaps the child and records the terminal status. If the
// session was already removed by an explicit Kill, there is nothing left
// to update.
func (r *Registry) onPumpExit(id string, e *entry, readErr error) {
	waitErr := e.handle.Wait()

	r.mu.Lock()
	cur, stillPresent := r.sessions[id]
	r.mu.Unlock()
	if !stillPresent || cur != e {
		return
	}

	e.mu.Lock()
	if readErr != io.EOF {
		e.info.Status = StatusError
		e.info.ErrorMsg = readErr.Error()
	} else {
		e.info.Status = StatusStopped
		code := exitCodeFrom(waitErr)
		e.info.ExitCode = &code
	}
	name := e.info.Name
	e.mu.Unlock()

	// The child exited on its own (not via Kill): free the name for reuse,
	// but leave the row in the sessions table so a caller can still
	// observe the terminal status and exit code.
	r.mu.Lock()
	delete(r.nameIndex, name)
	r.mu.Unlock()

	e.bc.closeAll()

	r.log.WithFields(logrus.Fields{"session_id": id, "status": e.info.Status}).Info("session pump exited")
}

func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// SweepIdle is called periodically by the daemon to reap fully-stopped
// sessions with no attached transports, and to flip Running sessions with
// no recent output to Idle (and back, once output resumes). It never
// reaps a session that still has attached transports or that hasn't
// stopped or errored out.
func (r *Registry) SweepIdle(idleAfter time.Duration) {
	r.mu.Lock()
	entries := make(map[string]*entry, len(r.sessions))
	for id, e := range r.sessions {
		entries[id] = e
	}
	r.mu.Unlock()

	var toRemove []string
	now := time.Now()
	for id, e := range entries {
		e.mu.Lock()
		status := e.info.Status
		idle := now.Sub(e.lastOutput) > idleAfter
		switch {
		case status == StatusRunning && idle:
			e.info.Status = StatusIdle
		case status == StatusIdle && !idle:
			e.info.Status = StatusRunning
		}
		reapable := (status == StatusStopped || status == StatusError) && e.bc.subscriberCount() == 0
		e.mu.Unlock()
		if reapable {
			toRemove = append(toRemove, id)
		}
	}

	if len(toRemove) == 0 {
		return
	}
	r.mu.Lock()
	for _, id := range toRemove {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
}

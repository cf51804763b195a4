// Package facade is a thin marshalling surface over the session registry
// that validates argument shapes, applies external-interface defaults, and
// never returns anything but snapshots. Grounded on the argument validation
// shape of ehrlich-b-wingthing's internal/egg/server.go, which sits in
// front of its session layer the same way.
package facade

import (
	"time"

	"termrt/internal/apperr"
	"termrt/internal/registry"
)

// Facade is the one entry point external transports (HTTP, WS, CLI) call
// into. It owns no state of its own beyond the registry reference and the
// exec-wait default.
type Facade struct {
	reg             *registry.Registry
	execWaitDefault time.Duration
}

// New builds a Facade over reg. execWaitDefault is used when a caller omits
// timeout_ms on exec-wait.
func New(reg *registry.Registry, execWaitDefault time.Duration) *Facade {
	return &Facade{reg: reg, execWaitDefault: execWaitDefault}
}

// CreateRequest is the validated shape of POST /terminals.
type CreateRequest struct {
	Name  string
	CWD   string
	Shell string
	Cols  uint16
	Rows  uint16
	Env   map[string]string
}

func (f *Facade) Create(req CreateRequest) (*registry.Session, error) {
	if req.Name == "" {
		return nil, apperr.BadRequestf("name is required")
	}
	return f.reg.Create(registry.CreateConfig{
		Name:  req.Name,
		CWD:   req.CWD,
		Shell: req.Shell,
		Cols:  req.Cols,
		Rows:  req.Rows,
		Env:   req.Env,
	})
}

func (f *Facade) List() []registry.Session {
	return f.reg.List()
}

func (f *Facade) Get(id string) (*registry.Session, error) {
	if id == "" {
		return nil, apperr.BadRequestf("id is required")
	}
	return f.reg.Get(id)
}

func (f *Facade) GetByName(name string) (*registry.Session, error) {
	if name == "" {
		return nil, apperr.BadRequestf("name is required")
	}
	return f.reg.GetByName(name)
}

func (f *Facade) Kill(id string) error {
	if id == "" {
		return apperr.BadRequestf("id is required")
	}
	return f.reg.Kill(id)
}

func (f *Facade) Exec(id, command string) error {
	if command == "" {
		return apperr.BadRequestf("command is required")
	}
	return f.reg.Exec(id, command)
}

// ExecByName resolves name to an id (NotFound if absent) before exec'ing,
// matching the POST /terminals/by-name/{name}/exec contract.
func (f *Facade) ExecByName(name, command string) error {
	if command == "" {
		return apperr.BadRequestf("command is required")
	}
	id, ok := f.reg.ResolveName(name)
	if !ok {
		return apperr.NotFoundf("session %q not found", name)
	}
	return f.reg.Exec(id, command)
}

// ExecWaitResult is the validated response shape for POST
// /terminals/{id}/exec/wait.
type ExecWaitResult struct {
	Output     string
	DurationMs int64
}

func (f *Facade) ExecWait(id, command string, timeoutMs *int) (*ExecWaitResult, error) {
	if command == "" {
		return nil, apperr.BadRequestf("command is required")
	}
	timeout := f.execWaitDefault
	if timeoutMs != nil {
		if *timeoutMs <= 0 {
			return nil, apperr.BadRequestf("timeout_ms must be positive")
		}
		timeout = time.Duration(*timeoutMs) * time.Millisecond
	}
	output, dur, err := f.reg.ExecWait(id, command, timeout)
	if err != nil {
		return nil, err
	}
	return &ExecWaitResult{Output: output, DurationMs: dur.Milliseconds()}, nil
}

func (f *Facade) Write(id string, data []byte) (int, error) {
	return f.reg.Write(id, data)
}

func (f *Facade) Resize(id string, cols, rows uint16) error {
	return f.reg.Resize(id, cols, rows)
}

// BufferResult is the validated response shape for GET
// /terminals/{id}/buffer.
type BufferResult struct {
	Lines []string
	Total int
}

func (f *Facade) GetBuffer(id string, lines *int) (*BufferResult, error) {
	if lines != nil && *lines < 0 {
		return nil, apperr.BadRequestf("lines must be non-negative")
	}
	got, err := f.reg.GetBuffer(id, lines)
	if err != nil {
		return nil, err
	}
	return &BufferResult{Lines: got, Total: len(got)}, nil
}

func (f *Facade) FlushBuffer(id string) error {
	return f.reg.FlushBuffer(id)
}

// Subscribe and Unsubscribe pass through to the registry so the stream
// transport can attach/detach without reaching into registry internals
// directly.
func (f *Facade) Subscribe(id string) (*registry.Subscriber, []string, error) {
	return f.reg.Subscribe(id)
}

func (f *Facade) Unsubscribe(id string, sub *registry.Subscriber) {
	f.reg.Unsubscribe(id, sub)
}

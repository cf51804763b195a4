package registry

import "time"

// Status is one of a session's lifecycle states.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusIdle     Status = "idle"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// Session is the caller-visible snapshot of a live (or just-killed) shell.
// It never carries a handle — the registry is the only thing that touches
// PTY resources directly; callers only ever see snapshots.
type Session struct {
	ID        string
	Name      string
	CWD       string
	Shell     string
	Cols      uint16
	Rows      uint16
	CreatedAt time.Time
	Status    Status
	ErrorMsg  string // set iff Status == StatusError
	Pid       int
	ExitCode  *int // set once Status == StatusStopped via a non-kill path
}

// CreateConfig is the caller-supplied shape for Create. Zero values pick up
// the registry's configured defaults.
type CreateConfig struct {
	Name  string
	CWD   string
	Shell string
	Cols  uint16
	Rows  uint16
	Env   map[string]string
}

package facade

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"termrt/internal/apperr"
	"termrt/internal/config"
	"termrt/internal/registry"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	reg := registry.New(&config.Config{
		Workspace:       ".",
		MaxSessions:     5,
		ScrollbackLines: 1000,
		DefaultShell:    "/bin/sh",
	}, log)
	return New(reg, 200*time.Millisecond)
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	f := newTestFacade(t)
	if _, err := f.Create(CreateRequest{}); apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestExec_RejectsEmptyCommand(t *testing.T) {
	f := newTestFacade(t)
	s, err := f.Create(CreateRequest{Name: "t1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Kill(s.ID)

	if err := f.Exec(s.ID, ""); apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestExecByName_UnknownNameIsNotFound(t *testing.T) {
	f := newTestFacade(t)
	if err := f.ExecByName("ghost", "echo hi"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestExecWait_AppliesDefaultTimeout(t *testing.T) {
	f := newTestFacade(t)
	s, err := f.Create(CreateRequest{Name: "ew"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Kill(s.ID)

	start := time.Now()
	res, err := f.ExecWait(s.ID, "echo hi", nil)
	if err != nil {
		t.Fatalf("ExecWait() error = %v", err)
	}
	if time.Since(start) < 200*time.Millisecond {
		t.Error("ExecWait returned before the default timeout elapsed")
	}
	if res.DurationMs <= 0 {
		t.Error("DurationMs should be positive")
	}
}

func TestExecWait_RejectsNonPositiveTimeout(t *testing.T) {
	f := newTestFacade(t)
	s, err := f.Create(CreateRequest{Name: "ew2"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Kill(s.ID)

	bad := 0
	if _, err := f.ExecWait(s.ID, "echo hi", &bad); apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestGetBuffer_RejectsNegativeLines(t *testing.T) {
	f := newTestFacade(t)
	s, err := f.Create(CreateRequest{Name: "buf"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Kill(s.ID)

	neg := -1
	if _, err := f.GetBuffer(s.ID, &neg); apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

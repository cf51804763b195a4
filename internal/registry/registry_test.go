package registry

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"termrt/internal/apperr"
	"termrt/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Workspace:       ".",
		MaxSessions:     3,
		ScrollbackLines: 1000,
		DefaultShell:    "/bin/sh",
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return New(testConfig(), log)
}

func waitForStatus(t *testing.T, r *Registry, id string, want Status, timeout time.Duration) Session {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last Session
	for time.Now().Before(deadline) {
		s, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		last = *s
		if s.Status == want {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status never reached %q, last seen %q", want, last.Status)
	return last
}

func TestCreate_AssignsDefaultsAndRunningStatus(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "main"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.Cols != config.DefaultCols || s.Rows != config.DefaultRows {
		t.Errorf("dims = %dx%d, want defaults %dx%d", s.Cols, s.Rows, config.DefaultCols, config.DefaultRows)
	}
	if s.Status != StatusRunning && s.Status != StatusStarting {
		t.Errorf("Status = %q, want running or starting", s.Status)
	}
	if s.Pid == 0 {
		t.Error("Pid = 0, want non-zero")
	}
	r.Kill(s.ID)
}

func TestCreate_DuplicateNameConflicts(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "dup"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	_, err = r.Create(CreateConfig{Name: "dup"})
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("second Create() kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestCreate_EmptyNameIsBadRequest(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(CreateConfig{Name: ""})
	if apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestCreate_MaxSessionsExhausted(t *testing.T) {
	r := newTestRegistry(t)
	var ids []string
	for i := 0; i < 3; i++ {
		s, err := r.Create(CreateConfig{Name: string(rune('a' + i))})
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
		ids = append(ids, s.ID)
	}
	defer func() {
		for _, id := range ids {
			r.Kill(id)
		}
	}()

	_, err := r.Create(CreateConfig{Name: "overflow"})
	if apperr.KindOf(err) != apperr.ResourceExhausted {
		t.Fatalf("kind = %v, want ResourceExhausted", apperr.KindOf(err))
	}
}

func TestKill_ThenGetIsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "killme"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := r.Kill(s.ID); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	if _, err := r.Get(s.ID); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("Get() after Kill kind = %v, want NotFound", apperr.KindOf(err))
	}
	if _, ok := r.ResolveName("killme"); ok {
		t.Error("ResolveName still resolves a killed session's name")
	}
}

func TestKill_FreesNameForReuse(t *testing.T) {
	r := newTestRegistry(t)
	s1, err := r.Create(CreateConfig{Name: "reuse"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := r.Kill(s1.ID); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	s2, err := r.Create(CreateConfig{Name: "reuse"})
	if err != nil {
		t.Fatalf("second Create() with freed name error = %v", err)
	}
	defer r.Kill(s2.ID)
	if s2.ID == s1.ID {
		t.Error("reused name produced the same session id")
	}
}

func TestKill_Idempotent(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "onceonly"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := r.Kill(s.ID); err != nil {
		t.Fatalf("first Kill() error = %v", err)
	}
	if err := r.Kill(s.ID); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("second Kill() kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestExecAndBuffer_RoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "exec"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	if err := r.Exec(s.ID, "echo marker-line"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		lines, err := r.GetBuffer(s.ID, nil)
		if err != nil {
			t.Fatalf("GetBuffer() error = %v", err)
		}
		if strings.Contains(strings.Join(lines, "\n"), "marker-line") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("did not observe echoed output in buffer")
}

func TestFlushBuffer_Clears(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "flush"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	if err := r.Exec(s.ID, "echo before-flush"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lines, _ := r.GetBuffer(s.ID, nil)
		if len(lines) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := r.FlushBuffer(s.ID); err != nil {
		t.Fatalf("FlushBuffer() error = %v", err)
	}
	lines, err := r.GetBuffer(s.ID, nil)
	if err != nil {
		t.Fatalf("GetBuffer() error = %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("GetBuffer() after flush = %v, want empty", lines)
	}
}

func TestResize_UpdatesStoredDims(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "resize"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	if err := r.Resize(s.ID, 100, 50); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Cols != 100 || got.Rows != 50 {
		t.Errorf("dims = %dx%d, want 100x50", got.Cols, got.Rows)
	}
}

func TestResize_RejectsZeroDims(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "badresize"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	if err := r.Resize(s.ID, 0, 50); apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestExecWait_AlwaysSleepsFullTimeout(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "execwait"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	start := time.Now()
	_, dur, err := r.ExecWait(s.ID, "echo quick", 150*time.Millisecond)
	if err != nil {
		t.Fatalf("ExecWait() error = %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 150*time.Millisecond {
		t.Errorf("ExecWait returned in %v, contract requires sleeping the full timeout", elapsed)
	}
	if dur < 150*time.Millisecond {
		t.Errorf("reported duration %v is less than the timeout slept", dur)
	}
}

func TestPumpExit_NaturalChildExitSetsStoppedAndFreesName(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "shortlived", Shell: "/bin/sh -c exit"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got := waitForStatus(t, r, s.ID, StatusStopped, 3*time.Second)
	if got.ExitCode == nil {
		t.Error("ExitCode is nil after natural exit, want set")
	}
	if _, ok := r.ResolveName("shortlived"); ok {
		t.Error("name still resolves after the child exited on its own")
	}

	r.SweepIdle(0)
	if _, err := r.Get(s.ID); apperr.KindOf(err) != apperr.NotFound {
		t.Error("SweepIdle did not reap a stopped session with no subscribers")
	}
}

func TestSubscribe_ReceivesBroadcastOutput(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.Create(CreateConfig{Name: "subscribe"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer r.Kill(s.ID)

	sub, _, err := r.Subscribe(s.ID)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer r.Unsubscribe(s.ID, sub)

	if err := r.Exec(s.ID, "echo subscriber-marker"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	var seen strings.Builder
	for time.Now().Before(deadline) {
		select {
		case chunk := <-sub.Chan():
			seen.Write(chunk)
			if strings.Contains(seen.String(), "subscriber-marker") {
				return
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatalf("subscriber never observed broadcast output, got: %q", seen.String())
}

func TestList_IncludesAllCreatedSessions(t *testing.T) {
	r := newTestRegistry(t)
	s1, _ := r.Create(CreateConfig{Name: "l1"})
	s2, _ := r.Create(CreateConfig{Name: "l2"})
	defer r.Kill(s1.ID)
	defer r.Kill(s2.ID)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() len = %d, want 2", len(list))
	}
}

func TestGetBuffer_UnknownSessionIsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.GetBuffer("nonexistent", nil); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("kind = %v, want NotFound", apperr.KindOf(err))
	}
}

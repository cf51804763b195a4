package pty

import (
	"strings"
	"testing"
	"time"
)

func TestSpawn_EchoRoundTrip(t *testing.T) {
	h, err := Spawn("/bin/sh", t.TempDir(), 80, 24, nil)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer h.Release()

	if _, err := h.Write([]byte("echo hello-pty\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	var out strings.Builder
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		h.ptm.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := h.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			if strings.Contains(out.String(), "hello-pty") {
				return
			}
		}
		if err != nil {
			break
		}
	}
	t.Fatalf("did not observe echoed output, got: %q", out.String())
}

func TestSpawn_InvalidShell(t *testing.T) {
	if _, err := Spawn("", t.TempDir(), 80, 24, nil); err == nil {
		t.Fatal("expected error for empty shell command")
	}
}

func TestResize(t *testing.T) {
	h, err := Spawn("/bin/sh", t.TempDir(), 80, 24, nil)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer h.Release()

	if err := h.Resize(100, 40); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
}

func TestPid_NonZeroAfterSpawn(t *testing.T) {
	h, err := Spawn("/bin/sh", t.TempDir(), 80, 24, nil)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer h.Release()

	if h.Pid() == 0 {
		t.Error("Pid() = 0, want non-zero after spawn")
	}
}

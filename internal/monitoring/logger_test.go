package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not reach the previous logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestSetLogWriters_Streams(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})

	Opsf("degenerate=%d", 3)
	Diagf("built index over %d points", 1000)
	Tracef("dropped because trace is disabled")

	if !strings.Contains(ops.String(), "[pointpca2] degenerate=3") {
		t.Errorf("ops stream = %q, want prefixed message", ops.String())
	}
	if !strings.Contains(diag.String(), "built index over 1000 points") {
		t.Errorf("diag stream = %q, want message", diag.String())
	}
	if TraceEnabled() {
		t.Error("TraceEnabled() = true with nil trace writer")
	}
}

func TestSetLogWriters_NilDisables(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})
	SetLogWriters(LogWriters{})

	Opsf("should not appear")
	if ops.Len() != 0 {
		t.Errorf("ops stream received %q after being disabled", ops.String())
	}
}

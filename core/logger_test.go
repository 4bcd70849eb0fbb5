package core

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

// withCapturedLog redirects the standard log package's output to a buffer
// for the duration of fn, restoring it afterward.
func withCapturedLog(fn func()) string {
	var buf bytes.Buffer
	prevOut := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}()
	fn()
	return buf.String()
}

// TestDefaultLogger_FormatsTypedFields verifies the typed Field
// constructors render as logfmt-style key=value pairs.
func TestDefaultLogger_FormatsTypedFields(t *testing.T) {
	l := &DefaultLogger{Threshold: LevelDebug}
	out := withCapturedLog(func() {
		l.Error("task panicked", WorkerField(3), TaskField(TaskID(7)), GrainField(2), ReasonField("boom"))
	})

	for _, want := range []string{"level=error", `msg="task panicked"`, "worker=3", "task=task-7", "grain=2", "reason=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %q", out, want)
		}
	}
}

// TestDefaultLogger_Threshold verifies entries below Threshold are dropped
// entirely, not just downgraded.
func TestDefaultLogger_Threshold(t *testing.T) {
	l := &DefaultLogger{Threshold: LevelWarn}
	out := withCapturedLog(func() {
		l.Debug("debug line")
		l.Info("info line")
		l.Warn("warn line")
		l.Error("error line")
	})

	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Fatalf("threshold did not drop below-level lines: %q", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Fatalf("threshold dropped at-or-above-level lines: %q", out)
	}
}

// TestNoOpLogger_DiscardsEverything verifies NoOpLogger never touches the
// shared log output, regardless of level.
func TestNoOpLogger_DiscardsEverything(t *testing.T) {
	l := NewNoOpLogger()
	out := withCapturedLog(func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
	if out != "" {
		t.Fatalf("NoOpLogger wrote output: %q", out)
	}
}

// TestDefaultPanicHandler_LogsGrainField verifies a panicking grain task's
// log line carries its grain index, not just its task id.
func TestDefaultPanicHandler_LogsGrainField(t *testing.T) {
	logger := &DefaultLogger{Threshold: LevelDebug}
	handler := &DefaultPanicHandler{Logger: logger}
	task := newTask(func(rt *Runtime, self *Task) (any, error) { return nil, nil }, nil, "g", 0)
	task.grainNum = 2

	out := withCapturedLog(func() {
		handler.HandlePanic(1, task, "boom", []byte("stack"))
	})

	if !strings.Contains(out, "grain=2") {
		t.Fatalf("expected grain field in panic log, got %q", out)
	}
}

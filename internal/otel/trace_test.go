package otel

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugEnabledToggle(t *testing.T) {
	orig := DebugEnabled()
	defer SetDebugEnabled(orig)

	SetDebugEnabled(true)
	if !DebugEnabled() {
		t.Error("DebugEnabled() should be true after SetDebugEnabled(true)")
	}

	SetDebugEnabled(false)
	if DebugEnabled() {
		t.Error("DebugEnabled() should be false after SetDebugEnabled(false)")
	}
}

func TestDebugEventsGated(t *testing.T) {
	orig := DebugEnabled()
	defer SetDebugEnabled(orig)

	SetDebugEnabled(false)
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Debug(KindLLMRequest, "brain", "prompt built")
	l.Info(KindStartup, "main", "up")
	l.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug event to be dropped, got %d lines", len(lines))
	}
	if l.Dropped() != 0 {
		t.Errorf("gated debug events should not count as dropped, got %d", l.Dropped())
	}

	SetDebugEnabled(true)
	buf.Reset()
	l = NewLogger(&buf)
	l.Debug(KindLLMRequest, "brain", "prompt built")
	l.Close()
	if !strings.Contains(buf.String(), `"llm.request"`) {
		t.Errorf("expected debug event when enabled, got %q", buf.String())
	}
}

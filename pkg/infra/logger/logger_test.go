package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInit_Text(t *testing.T) {
	Reset()
	buf := &bytes.Buffer{}
	Init(Config{
		Level:  "info",
		Format: "text",
		Output: buf,
	})
	defer Reset()

	Info("test message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected 'test message' in output, got: %s", output)
	}
}

func TestInit_JSON(t *testing.T) {
	Reset()
	buf := &bytes.Buffer{}
	Init(Config{
		Level:  "info",
		Format: "json",
		Output: buf,
	})
	defer Reset()

	Info("json message")
	output := buf.String()
	if !strings.Contains(output, "json message") {
		t.Errorf("expected 'json message' in output, got: %s", output)
	}
}

func TestInit_OnlyCalledOnce(t *testing.T) {
	Reset()
	buf1 := &bytes.Buffer{}
	buf2 := &bytes.Buffer{}

	Init(Config{Level: "info", Format: "text", Output: buf1})
	Init(Config{Level: "info", Format: "text", Output: buf2}) // second call is no-op

	Info("only once")

	if buf1.Len() == 0 {
		t.Error("expected buf1 to have output")
	}
	if buf2.Len() != 0 {
		t.Error("expected buf2 to be empty (second Init is a no-op)")
	}

	Reset()
}

func TestDefault_BeforeInit(t *testing.T) {
	Reset()
	if Default() == nil {
		t.Error("Default() should never return nil")
	}
}

func TestLevelFiltering(t *testing.T) {
	Reset()
	buf := &bytes.Buffer{}
	Init(Config{Level: "warn", Format: "text", Output: buf})
	defer Reset()

	Debug("should be dropped")
	Info("should be dropped too")
	Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("expected debug/info to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("expected warn message in output, got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	Reset()
	buf := &bytes.Buffer{}
	Init(Config{Level: "info", Format: "json", Output: buf})
	defer Reset()

	ctx := context.Background()
	ctx = SetOperation(ctx, "sync")
	ctx = SetSource(ctx, "default")
	ctx = SetContentHash(ctx, "abc123")

	WithContext(ctx).Info("enriched")

	output := buf.String()
	for _, want := range []string{`"operation":"sync"`, `"source":"default"`, `"content_hash":"abc123"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestWithContext_Empty(t *testing.T) {
	Reset()
	buf := &bytes.Buffer{}
	Init(Config{Level: "info", Format: "json", Output: buf})
	defer Reset()

	WithContext(context.Background()).Info("bare")

	output := buf.String()
	if strings.Contains(output, "operation") || strings.Contains(output, "source") {
		t.Errorf("expected no correlation fields, got: %s", output)
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if GetOperation(ctx) != "" || GetSource(ctx) != "" {
		t.Error("expected empty values on fresh context")
	}

	ctx = SetOperation(ctx, "resolve")
	ctx = SetSource(ctx, "extra")

	if got := GetOperation(ctx); got != "resolve" {
		t.Errorf("GetOperation = %q, want resolve", got)
	}
	if got := GetSource(ctx); got != "extra" {
		t.Errorf("GetSource = %q, want extra", got)
	}
}

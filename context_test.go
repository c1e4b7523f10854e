package command

import "testing"

func TestContextGetSetRemove(t *testing.T) {
	ctx := newContext("test-command", map[string]any{"seed": 1})

	if ctx.CommandName() != "test-command" {
		t.Fatalf("expected command name to be preserved, got %q", ctx.CommandName())
	}
	if v := ctx.Get("seed"); v != 1 {
		t.Fatalf("expected seed value 1, got %v", v)
	}

	ctx.Set("added", "value")
	if v := ctx.Get("added"); v != "value" {
		t.Fatalf("expected added value, got %v", v)
	}

	ctx.Remove("added")
	if v := ctx.Get("added"); v != nil {
		t.Fatalf("expected added to be removed, got %v", v)
	}
}

func TestContextSetIgnoresEmptyKeyOrNilValue(t *testing.T) {
	ctx := newContext("test-command", nil)

	ctx.Set("", "ignored")
	if v := ctx.Get(""); v != nil {
		t.Fatalf("expected empty key to be ignored, got %v", v)
	}

	ctx.Set("k", nil)
	if v := ctx.Get("k"); v != nil {
		t.Fatalf("expected nil value to be ignored, got %v", v)
	}
}

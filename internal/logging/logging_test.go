// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestErrKeyConstant(t *testing.T) {
	if ErrKey != "error" {
		t.Errorf("expected ErrKey to be 'error', got %q", ErrKey)
	}
}

func TestAppendCtx(t *testing.T) {
	attr := slog.String("key1", "value1")
	ctx := AppendCtx(context.TODO(), attr)

	if ctx == nil {
		t.Fatal("expected non-nil context")
	}

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	if !ok {
		t.Fatal("expected slog attributes in context")
	}
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "key1" {
		t.Errorf("expected attribute key 'key1', got %q", attrs[0].Key)
	}
}

func TestAppendCtxAccumulates(t *testing.T) {
	ctx := AppendCtx(context.Background(), slog.String("a", "1"))
	ctx = AppendCtx(ctx, slog.String("b", "2"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	if !ok {
		t.Fatal("expected slog attributes in context")
	}
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "a" || attrs[1].Key != "b" {
		t.Errorf("attributes out of order: %v", attrs)
	}
}

func TestAppendCtxMultipleAttrs(t *testing.T) {
	ctx := AppendCtx(context.Background(),
		slog.String("run_id", "abc"),
		slog.String("meeting_type", "coffee"),
	)
	ctx = AppendCtx(ctx, slog.String("requester", "r@corp.example"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	if !ok {
		t.Fatal("expected slog attributes in context")
	}
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "run_id" || attrs[1].Key != "meeting_type" || attrs[2].Key != "requester" {
		t.Errorf("attributes out of order: %v", attrs)
	}
}

func TestAppendCtxNilParent(t *testing.T) {
	//nolint:staticcheck // passing nil on purpose to exercise the fallback
	ctx := AppendCtx(nil, slog.String("key", "value"))
	if ctx == nil {
		t.Fatal("expected non-nil context from nil parent")
	}
}

package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"firecheck/internal/blob/core"
)

func TestStorePutReplacesAndLists(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, "reports/a.txt", strings.NewReader("one"), core.PutOptions{Metadata: map[string]string{"site": "A"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := s.Put(ctx, "reports/a.txt", strings.NewReader("second"), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if info.Size != int64(len("second")) || info.Metadata != nil {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "other/b.txt", strings.NewReader("b"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, _ := s.List(ctx, "reports/")
	if len(list) != 1 || list[0].Key != "reports/a.txt" {
		t.Fatalf("unexpected list %+v", list)
	}
	_, rc, err := s.Get(ctx, "reports/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestStoreMissingAndUnsupported(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, err := s.Delete(ctx, "nope"); ok || err != nil {
		t.Fatalf("unexpected delete result %v %v", ok, err)
	}
	if _, err := s.PresignURL(ctx, "nope", 0); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver")
	}
}

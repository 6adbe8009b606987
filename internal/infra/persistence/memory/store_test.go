package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"firecheck/internal/infra/persistence/adaptertest"
	"firecheck/pkg/domain"
)

func TestStoreContract(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) domain.Adapter {
		return NewStore()
	})
}

func TestStoreExportImportPreservesOrder(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return fixed }))
	a, err := store.InsertSite(ctx, Site{Name: "a", Address: "x"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := store.InsertSite(ctx, Site{Name: "b", Address: "y"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !a.CreatedAt.Equal(fixed) {
		t.Fatalf("expected clock override, got %v", a.CreatedAt)
	}
	sites, _ := store.ListSites(ctx)
	if sites[0].ID != b.ID {
		t.Fatalf("equal timestamps should list latest insert first: %+v", sites)
	}

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if sites, _ := store.ListSites(ctx); len(sites) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	sites, _ = store.ListSites(ctx)
	if len(sites) != 2 || sites[0].ID != b.ID || sites[1].ID != a.ID {
		t.Fatalf("order lost across import: %+v", sites)
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
}

func TestCommitHookFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	fail := false
	var seen []Snapshot
	store := NewStore(WithCommitHook(func(_ context.Context, s Snapshot) error {
		if fail {
			return errors.New("disk full")
		}
		seen = append(seen, s)
		return nil
	}))
	site, err := store.InsertSite(ctx, Site{Name: "a", Address: "x"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(seen) != 1 || len(seen[0].Sites) != 1 {
		t.Fatalf("hook should see the new state, got %+v", seen)
	}
	fail = true
	name := "renamed"
	if _, err := store.UpdateSite(ctx, site.ID, domain.SitePatch{Name: &name}); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	sites, _ := store.ListSites(ctx)
	if sites[0].Name != "a" {
		t.Fatalf("failed write leaked into state: %+v", sites)
	}
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore()
	if _, err := store.InsertSite(ctx, Site{Name: "a", Address: "x"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := store.ListSites(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled cause, got %v", err)
	}
}

func TestDuplicateIDConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.InsertSite(ctx, Site{ID: "s1", Name: "a", Address: "x"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertSite(ctx, Site{ID: "s1", Name: "b", Address: "y"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUnknownHistoryTable(t *testing.T) {
	store := NewStore()
	if _, err := store.ListHistory(context.Background(), "tags"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.PutHistory(context.Background(), "tags", HistoryEntry{Text: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

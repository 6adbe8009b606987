package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"firecheck/pkg/domain"
)

// HistoryTracker keeps the description and location autocomplete tables.
// Writers are serialized and the in-memory table only changes after the
// adapter accepted the entry.
type HistoryTracker struct {
	repo   domain.HistoryRepository
	logger *zap.Logger
	now    func() time.Time

	writeMu sync.Mutex
	mu      sync.RWMutex
	tables  map[HistoryTable]map[string]HistoryEntry
	wg      sync.WaitGroup
}

// NewHistoryTracker returns an empty tracker persisting through repo.
func NewHistoryTracker(repo domain.HistoryRepository, logger *zap.Logger, now func() time.Time) *HistoryTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	tables := make(map[HistoryTable]map[string]HistoryEntry, len(domain.HistoryTables()))
	for _, table := range domain.HistoryTables() {
		tables[table] = make(map[string]HistoryEntry)
	}
	return &HistoryTracker{repo: repo, logger: logger, now: now, tables: tables}
}

func knownTable(table HistoryTable) bool {
	for _, t := range domain.HistoryTables() {
		if t == table {
			return true
		}
	}
	return false
}

// Load replaces the in-memory tables with the adapter's contents.
func (h *HistoryTracker) Load(ctx context.Context) error {
	loaded := make(map[HistoryTable]map[string]HistoryEntry, len(domain.HistoryTables()))
	for _, table := range domain.HistoryTables() {
		entries, err := h.repo.ListHistory(ctx, table)
		if err != nil {
			return err
		}
		rows := make(map[string]HistoryEntry, len(entries))
		for _, entry := range entries {
			rows[entry.Text] = entry
		}
		loaded[table] = rows
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.mu.Lock()
	h.tables = loaded
	h.mu.Unlock()
	return nil
}

// RecordUse counts one use of text in table. Blank text is ignored and
// returns a zero entry.
func (h *HistoryTracker) RecordUse(ctx context.Context, table HistoryTable, text string) (HistoryEntry, error) {
	if !knownTable(table) {
		return HistoryEntry{}, &domain.ValidationError{Entity: domain.EntityHistory, Fields: []string{"table"}, Reason: "unknown table " + string(table)}
	}
	key := domain.NormalizeHistoryText(text)
	if key == "" {
		return HistoryEntry{}, nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.RLock()
	prev, exists := h.tables[table][key]
	h.mu.RUnlock()

	next := HistoryEntry{Text: key, Count: 1, LastUsed: h.now()}
	if exists {
		next.Count = prev.Count + 1
		next = next.Merge(HistoryEntry{LastUsed: prev.LastUsed})
	}
	stored, err := h.repo.PutHistory(ctx, table, next)
	if err != nil {
		return HistoryEntry{}, err
	}
	stored = next.Merge(stored)

	h.mu.Lock()
	h.tables[table][key] = stored
	h.mu.Unlock()
	return stored, nil
}

// RecordIssueAsync records the issue's description and location in the
// background. Failures are logged and never reach the caller.
func (h *HistoryTracker) RecordIssueAsync(ctx context.Context, issue Issue) {
	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		uses := []struct {
			table HistoryTable
			text  string
		}{
			{HistoryDescriptions, issue.Description},
			{HistoryLocations, issue.Location},
		}
		for _, use := range uses {
			if _, err := h.RecordUse(ctx, use.table, use.text); err != nil {
				h.logger.Warn("record history failed",
					zap.String("table", string(use.table)),
					zap.String("issue_id", issue.ID),
					zap.Error(err))
			}
		}
	}()
}

// Wait blocks until background recordings have finished.
func (h *HistoryTracker) Wait() {
	h.wg.Wait()
}

func (h *HistoryTracker) entries(table HistoryTable) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, 0, len(h.tables[table]))
	for _, entry := range h.tables[table] {
		out = append(out, entry)
	}
	return out
}

func top(entries []HistoryEntry, n int) []HistoryEntry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}

// TopByFrequency orders by count, then most recent use, then text. n <= 0
// returns every entry.
func (h *HistoryTracker) TopByFrequency(table HistoryTable, n int) []HistoryEntry {
	entries := h.entries(table)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		return a.Text < b.Text
	})
	return top(entries, n)
}

// TopByRecency orders by most recent use, then count, then text. n <= 0
// returns every entry.
func (h *HistoryTracker) TopByRecency(table HistoryTable, n int) []HistoryEntry {
	entries := h.entries(table)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Text < b.Text
	})
	return top(entries, n)
}

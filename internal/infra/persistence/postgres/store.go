// Package postgres provides a PostgreSQL-backed persistence adapter that
// stores sites, inspections, issues and history rows in dedicated tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"

	"firecheck/docs/schema/sql"
	"firecheck/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain adapter.
var _ domain.Adapter = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/firecheck?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var schema = sqldocs.Statements(sqldocs.Postgres)

const (
	siteColumns       = `id, name, address, phone, manager_name, manager_phone, manager_email, approval_date, notes, created_at`
	inspectionColumns = `id, site_id, inspector, inspection_type, notes, created_at`
	issueColumns      = `id, inspection_id, facility_type, description, location, detail_location, created_at`
	historyColumns    = `text, count, last_used`
)

var historyTables = map[domain.HistoryTable]string{
	domain.HistoryDescriptions: "description_history",
	domain.HistoryLocations:    "location_history",
}

// Store persists records to PostgreSQL. Every write runs in its own
// transaction so cascades are all-or-nothing.
type Store struct {
	db    *sqlx.DB
	nowFn func() time.Time
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to DefaultDSN) and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	raw, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db := sqlx.NewDb(raw, defaultDriver)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Store{db: db, nowFn: func() time.Time { return time.Now().UTC() }}, nil
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Unavailable(op, fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(op, fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// mapErr translates driver errors into domain error kinds.
func mapErr(op string, entity domain.EntityType, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &domain.ConflictError{Entity: entity, ID: id, Err: err}
		case pgForeignKeyViolation:
			return &domain.NotFoundError{Entity: entity, ID: id}
		}
	}
	return domain.Unavailable(op, err)
}

func (s *Store) exists(ctx context.Context, tx *sqlx.Tx, op, table string, entity domain.EntityType, id string) error {
	var found string
	err := tx.GetContext(ctx, &found, fmt.Sprintf(`SELECT id FROM %s WHERE id = $1`, table), id)
	return mapErr(op, entity, id, err)
}

func newestFirst[T any](rows []T, created func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool { return created(rows[i]).After(created(rows[j])) })
}

// ListSites returns all sites, newest first.
func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	var sites []domain.Site
	if err := s.db.SelectContext(ctx, &sites, `SELECT `+siteColumns+` FROM sites ORDER BY created_at DESC`); err != nil {
		return nil, domain.Unavailable("list sites", err)
	}
	newestFirst(sites, func(v domain.Site) time.Time { return v.CreatedAt })
	return sites, nil
}

// InsertSite stores a new site.
func (s *Store) InsertSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = s.nowFn()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sites (`+siteColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		site.ID, site.Name, site.Address, site.Phone, site.ManagerName, site.ManagerPhone, site.ManagerEmail, site.ApprovalDate, site.Notes, site.CreatedAt)
	if err != nil {
		return domain.Site{}, mapErr("insert site", domain.EntitySite, site.ID, err)
	}
	return site, nil
}

// UpdateSite applies patch to an existing site.
func (s *Store) UpdateSite(ctx context.Context, id string, patch domain.SitePatch) (domain.Site, error) {
	const op = "update site"
	var updated domain.Site
	err := s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		var current domain.Site
		if err := tx.GetContext(ctx, &current, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id); err != nil {
			return mapErr(op, domain.EntitySite, id, err)
		}
		updated = patch.Apply(current)
		_, err := tx.ExecContext(ctx, `UPDATE sites SET name = $1, address = $2, phone = $3, manager_name = $4, manager_phone = $5, manager_email = $6, approval_date = $7, notes = $8 WHERE id = $9`,
			updated.Name, updated.Address, updated.Phone, updated.ManagerName, updated.ManagerPhone, updated.ManagerEmail, updated.ApprovalDate, updated.Notes, id)
		return mapErr(op, domain.EntitySite, id, err)
	})
	if err != nil {
		return domain.Site{}, err
	}
	return updated, nil
}

// RemoveSite deletes a site together with its inspections and their issues.
func (s *Store) RemoveSite(ctx context.Context, id string) error {
	const op = "remove site"
	return s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		if err := s.exists(ctx, tx, op, "sites", domain.EntitySite, id); err != nil {
			return err
		}
		var inspectionIDs []string
		if err := tx.SelectContext(ctx, &inspectionIDs, `SELECT id FROM inspections WHERE site_id = $1`, id); err != nil {
			return domain.Unavailable(op, err)
		}
		for _, inspectionID := range inspectionIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE inspection_id = $1`, inspectionID); err != nil {
				return domain.Unavailable(op, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM inspections WHERE site_id = $1`, id); err != nil {
			return domain.Unavailable(op, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id); err != nil {
			return domain.Unavailable(op, err)
		}
		return nil
	})
}

// ListInspections returns all inspections without issues, newest first.
func (s *Store) ListInspections(ctx context.Context) ([]domain.Inspection, error) {
	var inspections []domain.Inspection
	if err := s.db.SelectContext(ctx, &inspections, `SELECT `+inspectionColumns+` FROM inspections ORDER BY created_at DESC`); err != nil {
		return nil, domain.Unavailable("list inspections", err)
	}
	newestFirst(inspections, func(v domain.Inspection) time.Time { return v.CreatedAt })
	return inspections, nil
}

// InsertInspection stores a new inspection for an existing site.
func (s *Store) InsertInspection(ctx context.Context, inspection domain.Inspection) (domain.Inspection, error) {
	const op = "insert inspection"
	inspection.Issues = nil
	if inspection.ID == "" {
		inspection.ID = uuid.NewString()
	}
	if inspection.CreatedAt.IsZero() {
		inspection.CreatedAt = s.nowFn()
	}
	err := s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		if err := s.exists(ctx, tx, op, "sites", domain.EntitySite, inspection.SiteID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO inspections (`+inspectionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			inspection.ID, inspection.SiteID, inspection.Inspector, string(inspection.InspectionType), inspection.Notes, inspection.CreatedAt)
		return mapErr(op, domain.EntityInspection, inspection.ID, err)
	})
	if err != nil {
		return domain.Inspection{}, err
	}
	return inspection, nil
}

// UpdateInspection applies patch to an existing inspection.
func (s *Store) UpdateInspection(ctx context.Context, id string, patch domain.InspectionPatch) (domain.Inspection, error) {
	const op = "update inspection"
	var updated domain.Inspection
	err := s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		var current domain.Inspection
		if err := tx.GetContext(ctx, &current, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id); err != nil {
			return mapErr(op, domain.EntityInspection, id, err)
		}
		updated = patch.Apply(current)
		_, err := tx.ExecContext(ctx, `UPDATE inspections SET inspector = $1, inspection_type = $2, notes = $3 WHERE id = $4`,
			updated.Inspector, string(updated.InspectionType), updated.Notes, id)
		return mapErr(op, domain.EntityInspection, id, err)
	})
	if err != nil {
		return domain.Inspection{}, err
	}
	return updated, nil
}

// RemoveInspection deletes an inspection and its issues.
func (s *Store) RemoveInspection(ctx context.Context, id string) error {
	const op = "remove inspection"
	return s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		if err := s.exists(ctx, tx, op, "inspections", domain.EntityInspection, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE inspection_id = $1`, id); err != nil {
			return domain.Unavailable(op, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM inspections WHERE id = $1`, id); err != nil {
			return domain.Unavailable(op, err)
		}
		return nil
	})
}

// ListIssues returns all issues in creation order.
func (s *Store) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	var issues []domain.Issue
	if err := s.db.SelectContext(ctx, &issues, `SELECT `+issueColumns+` FROM issues ORDER BY created_at ASC`); err != nil {
		return nil, domain.Unavailable("list issues", err)
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })
	return issues, nil
}

// InsertIssue stores a new issue for an existing inspection.
func (s *Store) InsertIssue(ctx context.Context, issue domain.Issue) (domain.Issue, error) {
	const op = "insert issue"
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = s.nowFn()
	}
	err := s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		if err := s.exists(ctx, tx, op, "inspections", domain.EntityInspection, issue.InspectionID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO issues (`+issueColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			issue.ID, issue.InspectionID, string(issue.FacilityType), issue.Description, issue.Location, issue.DetailLocation, issue.CreatedAt)
		return mapErr(op, domain.EntityIssue, issue.ID, err)
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return issue, nil
}

// UpdateIssue applies patch to an existing issue.
func (s *Store) UpdateIssue(ctx context.Context, id string, patch domain.IssuePatch) (domain.Issue, error) {
	const op = "update issue"
	var updated domain.Issue
	err := s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		var current domain.Issue
		if err := tx.GetContext(ctx, &current, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id); err != nil {
			return mapErr(op, domain.EntityIssue, id, err)
		}
		updated = patch.Apply(current)
		_, err := tx.ExecContext(ctx, `UPDATE issues SET facility_type = $1, description = $2, location = $3, detail_location = $4 WHERE id = $5`,
			string(updated.FacilityType), updated.Description, updated.Location, updated.DetailLocation, id)
		return mapErr(op, domain.EntityIssue, id, err)
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return updated, nil
}

// RemoveIssue deletes an issue.
func (s *Store) RemoveIssue(ctx context.Context, id string) error {
	const op = "remove issue"
	return s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		if err := s.exists(ctx, tx, op, "issues", domain.EntityIssue, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id); err != nil {
			return domain.Unavailable(op, err)
		}
		return nil
	})
}

func historyTableName(table domain.HistoryTable) (string, error) {
	name, ok := historyTables[table]
	if !ok {
		return "", &domain.ValidationError{Entity: domain.EntityHistory, Fields: []string{"table"}, Reason: fmt.Sprintf("unknown table %q", table)}
	}
	return name, nil
}

// ListHistory returns the entries of one history table ordered by text.
func (s *Store) ListHistory(ctx context.Context, table domain.HistoryTable) ([]domain.HistoryEntry, error) {
	name, err := historyTableName(table)
	if err != nil {
		return nil, err
	}
	var entries []domain.HistoryEntry
	if err := s.db.SelectContext(ctx, &entries, `SELECT `+historyColumns+` FROM `+name+` ORDER BY text`); err != nil {
		return nil, domain.Unavailable("list history", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Text < entries[j].Text })
	return entries, nil
}

// PutHistory upserts a history entry without lowering the stored count or
// timestamp.
func (s *Store) PutHistory(ctx context.Context, table domain.HistoryTable, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	const op = "put history"
	name, err := historyTableName(table)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	entry.Text = domain.NormalizeHistoryText(entry.Text)
	if entry.Text == "" {
		return domain.HistoryEntry{}, &domain.ValidationError{Entity: domain.EntityHistory, Fields: []string{"text"}}
	}
	stored := entry
	err = s.withTx(ctx, op, func(tx *sqlx.Tx) error {
		var existing domain.HistoryEntry
		switch err := tx.GetContext(ctx, &existing, `SELECT `+historyColumns+` FROM `+name+` WHERE text = $1`, entry.Text); {
		case err == nil:
			stored = existing.Merge(entry)
		case !errors.Is(err, sql.ErrNoRows):
			return domain.Unavailable(op, err)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO `+name+` (`+historyColumns+`) VALUES ($1, $2, $3) ON CONFLICT (text) DO UPDATE SET count = GREATEST(`+name+`.count, EXCLUDED.count), last_used = GREATEST(`+name+`.last_used, EXCLUDED.last_used)`,
			stored.Text, stored.Count, stored.LastUsed)
		if err != nil {
			return domain.Unavailable(op, err)
		}
		return nil
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return stored, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

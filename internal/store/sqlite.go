package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Harsh-Kesharwani/system-health-monitor/internal/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// DBPath returns the database file path.
func (s *Store) DBPath() string { return s.dbPath }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Metric Snapshots ---

// InsertSnapshot stores a snapshot and sets its ID.
func (s *Store) InsertSnapshot(ctx context.Context, m *model.MetricSnapshot) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO metric_snapshots (timestamp, cpu_usage, memory_usage, disk_usage) VALUES (?, ?, ?, ?)",
		m.Timestamp.UnixMilli(), m.CPUUsage, m.MemoryUsage, m.DiskUsage)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// LatestSnapshot returns the most recent snapshot, or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context) (*model.MetricSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, timestamp, cpu_usage, memory_usage, disk_usage FROM metric_snapshots ORDER BY timestamp DESC, id DESC LIMIT 1")
	m, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SnapshotHistory returns up to limit snapshots, newest first.
func (s *Store) SnapshotHistory(ctx context.Context, limit int) ([]model.MetricSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, cpu_usage, memory_usage, disk_usage
		FROM metric_snapshots
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.MetricSnapshot
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// PurgeOlderThan removes snapshots older than the given number of hours.
func (s *Store) PurgeOlderThan(ctx context.Context, hours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	res, err := s.db.ExecContext(ctx, "DELETE FROM metric_snapshots WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r scanner) (model.MetricSnapshot, error) {
	var m model.MetricSnapshot
	var ts int64
	if err := r.Scan(&m.ID, &ts, &m.CPUUsage, &m.MemoryUsage, &m.DiskUsage); err != nil {
		return m, err
	}
	m.Timestamp = time.UnixMilli(ts).UTC()
	return m, nil
}

// --- Alerts ---

const alertColumns = "id, type, threshold, value, status, message, created_at, updated_at, resolved_at"

// SaveAlert inserts a new alert (ID == 0, assigned in place) or updates an
// existing one by ID.
func (s *Store) SaveAlert(ctx context.Context, a *model.Alert) error {
	var resolved sql.NullInt64
	if a.ResolvedAt != nil {
		resolved = sql.NullInt64{Int64: a.ResolvedAt.UnixMilli(), Valid: true}
	}

	if a.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO alerts (type, threshold, value, status, message, created_at, updated_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.Type, a.Threshold, a.Value, a.Status, a.Message,
			a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli(), resolved)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		a.ID = id
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET type = ?, threshold = ?, value = ?, status = ?, message = ?,
			created_at = ?, updated_at = ?, resolved_at = ?
		WHERE id = ?`,
		a.Type, a.Threshold, a.Value, a.Status, a.Message,
		a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli(), resolved, a.ID)
	if err != nil {
		return fmt.Errorf("update alert %d: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update alert %d: %w", a.ID, ErrNotFound)
	}
	return nil
}

// GetAlert returns the alert with id, or ErrNotFound.
func (s *Store) GetAlert(ctx context.Context, id int64) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActiveAlertByType returns the active alert of type t, or nil if none.
func (s *Store) FindActiveAlertByType(ctx context.Context, t model.AlertType) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE type = ? AND status = ? LIMIT 1", t, model.StatusActive)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActiveAlerts returns every active alert, oldest first.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	return s.queryAlerts(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE status = ? ORDER BY created_at, id", model.StatusActive)
}

// ListAlerts returns alerts newest first, filtered by status when it is non-empty.
func (s *Store) ListAlerts(ctx context.Context, status model.AlertStatus) ([]model.Alert, error) {
	if status == "" {
		return s.queryAlerts(ctx, "SELECT "+alertColumns+" FROM alerts ORDER BY created_at DESC, id DESC")
	}
	return s.queryAlerts(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE status = ? ORDER BY created_at DESC, id DESC", status)
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAlert(r scanner) (model.Alert, error) {
	var a model.Alert
	var created, updated int64
	var resolved sql.NullInt64
	if err := r.Scan(&a.ID, &a.Type, &a.Threshold, &a.Value, &a.Status, &a.Message, &created, &updated, &resolved); err != nil {
		return a, err
	}
	a.CreatedAt = time.UnixMilli(created).UTC()
	a.UpdatedAt = time.UnixMilli(updated).UTC()
	if resolved.Valid {
		t := time.UnixMilli(resolved.Int64).UTC()
		a.ResolvedAt = &t
	}
	return a, nil
}

// --- Settings ---

// GetSetting returns a setting value, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetAllSettings returns all settings.
func (s *Store) GetAllSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Setting
	for rows.Next() {
		var st model.Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

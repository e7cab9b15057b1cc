// Package storage provides the SQLite-backed repository for projects and
// receipts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ricevute/internal/core"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const defaultProjectName = "Default Collection"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureDefaultProject seeds the default collection when no projects exist
// yet. Returns true when a row was inserted.
func (r *SQLiteRepository) EnsureDefaultProject(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return false, fmt.Errorf("count projects: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (name, description) VALUES (?, ?)`,
		defaultProjectName, "Default project for collecting receipts")
	if err != nil {
		// A concurrent starter may have seeded first.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("seed default project: %w", err)
	}

	slog.InfoContext(ctx, "Seeded default project", "name", defaultProjectName)
	return true, nil
}

// ListProjects returns all projects, most recently created first.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), COALESCE(created_at, '')
		 FROM projects ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []core.Project
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// CreateProject inserts a new project. The name is trimmed first; an empty
// name maps to core.ErrEmptyProjectName and a duplicate to
// core.ErrProjectExists. The UNIQUE constraint, not a pre-check, is the
// safety net for concurrent duplicate submissions.
func (r *SQLiteRepository) CreateProject(ctx context.Context, name, description string) (int64, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return 0, core.ErrEmptyProjectName
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, core.ErrProjectExists
		}
		return 0, fmt.Errorf("insert project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("project insert id: %w", err)
	}

	slog.InfoContext(ctx, "Project created", "id", id, "name", name)
	return id, nil
}

// GetProject returns the project with the given id, or
// core.ErrProjectNotFound.
func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (*core.Project, error) {
	var p core.Project
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), COALESCE(created_at, '')
		 FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return &p, nil
}

// SummarizeProjects reports receipt count and amount sum per project.
// Projects without receipts appear with count 0 and a nil total.
func (r *SQLiteRepository) SummarizeProjects(ctx context.Context) ([]core.ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.name, COUNT(r.id), SUM(r.amount)
		 FROM projects p
		 LEFT JOIN receipts r ON p.id = r.project_id
		 GROUP BY p.id, p.name
		 ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("summarize projects: %w", err)
	}
	defer rows.Close()

	var summaries []core.ProjectSummary
	for rows.Next() {
		var s core.ProjectSummary
		var total sql.NullFloat64
		if err := rows.Scan(&s.Project, &s.Count, &total); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if total.Valid {
			s.Total = &total.Float64
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// CreateReceipt persists a submitted receipt row.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, rc core.Receipt) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (project_id, room_number, study_level, student_id, amount, transfer_date, notes, image_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableInt(rc.ProjectID), rc.RoomNumber, rc.StudyLevel, rc.StudentID,
		rc.Amount, nullableString(rc.TransferDate), rc.Notes, rc.ImagePath)
	if err != nil {
		return 0, fmt.Errorf("insert receipt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("receipt insert id: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved",
		"id", id,
		"student_id", rc.StudentID,
		"amount", rc.Amount,
		"image", rc.ImagePath)
	return id, nil
}

// ListReceipts returns every receipt newest-first, annotated with the
// owning project's name. The join is a LEFT JOIN so unassigned and
// orphaned receipts come back with a nil project name.
func (r *SQLiteRepository) ListReceipts(ctx context.Context) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.project_id, COALESCE(r.room_number, ''), COALESCE(r.study_level, ''),
		        COALESCE(r.student_id, ''), COALESCE(r.amount, 0), r.transfer_date,
		        COALESCE(r.notes, ''), COALESCE(r.image_path, ''), p.name
		 FROM receipts r
		 LEFT JOIN projects p ON r.project_id = p.id
		 ORDER BY r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []core.Receipt
	for rows.Next() {
		var (
			rc           core.Receipt
			projectID    sql.NullInt64
			transferDate sql.NullString
			projectName  sql.NullString
		)
		if err := rows.Scan(&rc.ID, &projectID, &rc.RoomNumber, &rc.StudyLevel,
			&rc.StudentID, &rc.Amount, &transferDate, &rc.Notes, &rc.ImagePath,
			&projectName); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		if projectID.Valid {
			rc.ProjectID = &projectID.Int64
		}
		if transferDate.Valid {
			rc.TransferDate = &transferDate.String
		}
		if projectName.Valid {
			rc.ProjectName = &projectName.String
		}
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	apperrors "landscape-planner/internal/common/errors"
	"landscape-planner/internal/planner/models"
)

// ============================================================
// SQLite Repository
// ============================================================

// Repository stores project documents per user.
type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init запускает миграции.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := r.runMigrations(ctx, migrationsPath); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, err, "migrations")
	}
	return nil
}

// Create stores doc as a new project of userID.
func (r *Repository) Create(ctx context.Context, userID string, doc models.ProjectDocument) (*models.StoredProject, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err, "encode document")
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO projects (id, user_id, name, description, document)
        VALUES (?, ?, ?, ?, ?)
    `, id, userID, doc.Name, doc.Description, string(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "insert project")
	}
	return r.Get(ctx, userID, id)
}

// Update replaces the document of an existing project.
func (r *Repository) Update(ctx context.Context, userID, id string, doc models.ProjectDocument) (*models.StoredProject, error) {
	if err := r.checkOwner(ctx, userID, id); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, err, "encode document")
	}

	_, err = r.db.ExecContext(ctx, `
        UPDATE projects
        SET name = ?, description = ?, document = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND user_id = ?
    `, doc.Name, doc.Description, string(data), id, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "update project")
	}
	return r.Get(ctx, userID, id)
}

func (r *Repository) Get(ctx context.Context, userID, id string) (*models.StoredProject, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, user_id, document, created_at, updated_at
        FROM projects
        WHERE id = ?
    `, id)

	var (
		p    models.StoredProject
		data string
	)
	if err := row.Scan(&p.ID, &p.UserID, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "project %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "select project")
	}
	if p.UserID != userID {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "project %s belongs to another user", id)
	}
	if err := json.Unmarshal([]byte(data), &p.Document); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "decode project %s", id)
	}
	return &p, nil
}

// ListByUser returns the user's projects, most recently updated first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, description, updated_at
        FROM projects
        WHERE user_id = ?
        ORDER BY updated_at DESC, rowid DESC
    `, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "list projects")
	}
	defer rows.Close()

	out := []models.ProjectSummary{}
	for rows.Next() {
		var s models.ProjectSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "scan project")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodePersistence, err, "list projects")
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	if err := r.checkOwner(ctx, userID, id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePersistence, err, "delete project")
	}
	return nil
}

func (r *Repository) checkOwner(ctx context.Context, userID, id string) error {
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM projects WHERE id = ?`, id).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperrors.New(apperrors.ErrCodeNotFound, "project %s not found", id)
	case err != nil:
		return apperrors.Wrap(apperrors.ErrCodePersistence, err, "select project owner")
	case owner != userID:
		return apperrors.New(apperrors.ErrCodeForbidden, "project %s belongs to another user", id)
	}
	return nil
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context, migrationsPath string) error {
	data, err := os.ReadFile(migrationsPath)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

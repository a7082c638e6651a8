package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateWorkspace creates a new workspace in the repository.
func (r *Repository) CreateWorkspace(ctx context.Context, w model.Workspace) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	query := `
		INSERT INTO workspaces (id, name, repo, starred, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		w.ID,
		w.Name,
		w.Repo,
		boolToInt(w.Starred),
		w.CreatedAt.Unix(),
		w.UpdatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: workspaces.") {
			return fmt.Errorf("workspace already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert workspace: %w", err)
	}

	r.logger.Debugf("Created workspace in repository: %s", w.ID)
	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (r *Repository) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	query := `
		SELECT id, name, repo, starred, created_at, updated_at
		FROM workspaces
		WHERE id = ?
	`

	workspace, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query workspace: %w", err)
	}

	return workspace, nil
}

// GetWorkspaceByName retrieves a workspace by name.
func (r *Repository) GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error) {
	query := `
		SELECT id, name, repo, starred, created_at, updated_at
		FROM workspaces
		WHERE name = ?
	`

	workspace, err := r.scanOne(ctx, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workspace with name %s: %w", name, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query workspace: %w", err)
	}

	return workspace, nil
}

// ListWorkspaces returns all workspaces, newest first.
func (r *Repository) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	query := `
		SELECT id, name, repo, starred, created_at, updated_at
		FROM workspaces
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []model.Workspace
	for rows.Next() {
		workspace, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		workspaces = append(workspaces, workspace)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return workspaces, nil
}

// UpdateWorkspace updates an existing workspace.
func (r *Repository) UpdateWorkspace(ctx context.Context, w model.Workspace) error {
	query := `
		UPDATE workspaces
		SET name = ?, repo = ?, starred = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		w.Name,
		w.Repo,
		boolToInt(w.Starred),
		w.CreatedAt.Unix(),
		w.UpdatedAt.Unix(),
		w.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update workspace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workspace %s: %w", w.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated workspace in repository: %s", w.ID)
	return nil
}

// DeleteWorkspace deletes a workspace.
func (r *Repository) DeleteWorkspace(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete workspace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted workspace from repository: %s", id)
	return nil
}

// SetWorkspaceStarred sets the starred flag on a workspace.
func (r *Repository) SetWorkspaceStarred(ctx context.Context, id string, starred bool) error {
	query := `UPDATE workspaces SET starred = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, boolToInt(starred), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("could not update workspace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}

	return nil
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*model.Workspace, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	workspace, err := r.scanRow(row)
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(s scanner) (model.Workspace, error) {
	var workspace model.Workspace
	var starred int
	var createdAt, updatedAt int64

	err := s.Scan(
		&workspace.ID,
		&workspace.Name,
		&workspace.Repo,
		&starred,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Workspace{}, err
	}

	workspace.Starred = starred != 0
	workspace.CreatedAt = time.Unix(createdAt, 0).UTC()
	workspace.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return workspace, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

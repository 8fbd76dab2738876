package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"prelaunch/internal/registration/models"
	"prelaunch/pkg/platform/sentinel"
)

// SQLite persists registrations in a local database file. Used for
// single-instance deployments and local runs without PostgreSQL.
type SQLite struct {
	db *sql.DB
}

// NewSQLite constructs a SQLite-backed store.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Insert(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO pre_lancamento_cadastros
			(id, nome, email, celular, aceitar_notificacoes, aceitar_lgpd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		reg.ID.String(),
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.WantsNotifications,
		reg.AcceptsPrivacyPolicy,
		reg.CreatedAt.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("insert registration: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *SQLite) FindByEmail(ctx context.Context, email string) (*models.Registration, error) {
	query := `
		SELECT id, nome, email, celular, aceitar_notificacoes, aceitar_lgpd, created_at
		FROM pre_lancamento_cadastros
		WHERE email = ? COLLATE NOCASE
	`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find registration by email: %w", err)
	}
	return reg, nil
}

func (s *SQLite) List(ctx context.Context, opts models.ListOptions) ([]*models.Registration, error) {
	opts.Normalize()
	query := `
		SELECT id, nome, email, celular, aceitar_notificacoes, aceitar_lgpd, created_at
		FROM pre_lancamento_cadastros
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM pre_lancamento_cadastros`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

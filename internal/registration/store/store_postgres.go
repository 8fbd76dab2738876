package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"prelaunch/internal/registration/models"
	"prelaunch/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Postgres persists registrations in pre_lancamento_cadastros. It works with
// either the lib/pq or the pgx stdlib driver behind the *sql.DB.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Insert(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO pre_lancamento_cadastros
			(id, nome, email, celular, aceitar_notificacoes, aceitar_lgpd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		reg.ID,
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.WantsNotifications,
		reg.AcceptsPrivacyPolicy,
		reg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert registration: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.Registration, error) {
	query := `
		SELECT id, nome, email, celular, aceitar_notificacoes, aceitar_lgpd, created_at
		FROM pre_lancamento_cadastros
		WHERE lower(email) = lower($1)
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

func (s *Postgres) List(ctx context.Context, opts models.ListOptions) ([]*models.Registration, error) {
	opts.Normalize()
	query := `
		SELECT id, nome, email, celular, aceitar_notificacoes, aceitar_lgpd, created_at
		FROM pre_lancamento_cadastros
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM pre_lancamento_cadastros`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. The audit table is
 * append-only; nothing in the balance resolution path ever reads it back, so
 * the queries stay deliberately simple.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/domain: Audit record model.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fondeo/balance-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface
// for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RecordResolution inserts one terminal resolution audit row.
func (r *PostgresRepository) RecordResolution(ctx context.Context, res *domain.BalanceResolution) error {
	query := `
		INSERT INTO balance_resolutions (id, email, source, balance, workflow_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		res.ID, res.Email, res.Source, res.Balance, res.WorkflowID, res.Status, res.CreatedAt,
	)
	return err
}

// FindRecentResolutions returns the newest audit rows for an email.
func (r *PostgresRepository) FindRecentResolutions(ctx context.Context, email string, limit int) ([]domain.BalanceResolution, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT id, email, source, balance, workflow_id, status, created_at
		FROM balance_resolutions
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resolutions := make([]domain.BalanceResolution, 0, limit)
	for rows.Next() {
		var res domain.BalanceResolution
		if err := rows.Scan(&res.ID, &res.Email, &res.Source, &res.Balance, &res.WorkflowID, &res.Status, &res.CreatedAt); err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}
	return resolutions, rows.Err()
}

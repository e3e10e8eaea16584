/**
 * @description
 * This file defines the `Repository` interface for the balance-service's audit
 * persistence. The interface decouples the application logic from PostgreSQL
 * and lets tests substitute stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: Audit record model.
 */

package store

import (
	"context"

	"github.com/fondeo/balance-service/internal/domain"
)

// Repository defines the persistence operations for resolution audit records.
type Repository interface {
	// RecordResolution inserts one terminal resolution audit row.
	RecordResolution(ctx context.Context, res *domain.BalanceResolution) error
	// FindRecentResolutions returns the newest audit rows for an email,
	// newest first.
	FindRecentResolutions(ctx context.Context, email string, limit int) ([]domain.BalanceResolution, error)
}

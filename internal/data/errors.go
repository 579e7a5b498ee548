package data

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	domainauth "github.com/commandcenter/inboxauth/internal/domain/auth"
	apperrors "github.com/commandcenter/inboxauth/internal/errors"
)

// storeError wraps a repository failure for op. Missing rows surface as ErrNotFound; everything
// else as ErrPersistenceFailed carrying the mapped AppError.
func storeError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domainauth.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, domainauth.ErrPersistenceFailed, apperrors.MapDBError(err))
}

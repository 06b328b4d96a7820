// internal/services/services.go
package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/database"
)

// storeError converts a raw store failure into the engine's taxonomy.
// Serialization conflicts become retryable; everything else that is not
// already typed surfaces as a transient store error so the caller can
// distinguish it from a business rejection.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrTransient) {
		return err
	}
	if database.IsSerializationFailure(err) {
		return apperrors.Transientf("transaction aborted by write conflict: %v", err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFoundf("record not found")
	}
	return apperrors.Transientf("store operation failed: %v", err)
}

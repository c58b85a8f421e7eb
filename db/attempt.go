package db

import (
	"context"
	"fmt"

	"github.com/alwitt/attest/models"
	"github.com/oklog/ulid/v2"
)

// ======================================================================================
// Validation attempts

/*
RecordValidationAttempt append one validation attempt row

	@param ctx context.Context - execution context
	@param attempt models.ValidationAttempt - the attempt to record
	@returns attempt entry
*/
func (d *databaseImpl) RecordValidationAttempt(
	_ context.Context, attempt models.ValidationAttempt,
) (models.ValidationAttempt, error) {
	if attempt.ID == "" {
		attempt.ID = ulid.Make().String()
	}

	newEntry := ValidationAttemptDBEntry{ValidationAttempt: attempt}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.ValidationAttempt{}, fmt.Errorf(
			"new validation attempt for '%s' is not valid [%w]", attempt.PresentedNumber, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.ValidationAttempt{}, fmt.Errorf(
			"new validation attempt for '%s' failed insert [%w]",
			attempt.PresentedNumber,
			tmp.Error,
		)
	}

	return newEntry.ValidationAttempt, nil
}

/*
ListValidationAttempts list validation attempts

	@param ctx context.Context - execution context
	@param filters ValidationAttemptQueryFilter - entry listing filter
	@return list of attempts
*/
func (d *databaseImpl) ListValidationAttempts(
	_ context.Context, filters ValidationAttemptQueryFilter,
) ([]models.ValidationAttempt, error) {
	query := d.db.Model(&ValidationAttemptDBEntry{})

	if filters.TargetCredentialID != nil {
		query = query.Where("credential_id = ?", *filters.TargetCredentialID)
	}
	if filters.OnlyFraudSuspected {
		query = query.Where("fraud_suspected = ?", true)
	}
	if filters.AttemptsAfter != nil {
		query = query.Where("created_at >= ?", *filters.AttemptsAfter)
	}
	if filters.AttemptsBefore != nil {
		query = query.Where("created_at <= ?", *filters.AttemptsBefore)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("id desc")

	var entries []ValidationAttemptDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list validation attempts [%w]", tmp.Error)
	}

	result := []models.ValidationAttempt{}
	for _, entry := range entries {
		result = append(result, entry.ValidationAttempt)
	}

	return result, nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/attest/models"
	"github.com/google/uuid"
)

/*
DefineNewSubject define new subject

	@param ctx context.Context - execution context
	@param params NewSubjectParams - the subject fields
	@returns subject entry
*/
func (d *databaseImpl) DefineNewSubject(
	_ context.Context, params NewSubjectParams,
) (models.Subject, error) {
	if err := d.validator.Struct(&params); err != nil {
		return models.Subject{}, fmt.Errorf("new subject parameters are not valid [%w]", err)
	}

	newEntry := SubjectDBEntry{
		Subject: models.Subject{
			ID:                  uuid.NewString(),
			TenantID:            params.TenantID,
			Name:                params.Name,
			NationalID:          params.NationalID,
			NationalIDProtected: params.NationalIDProtected,
			RegistryID:          params.RegistryID,
			RegistryIDProtected: params.RegistryIDProtected,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Subject{}, fmt.Errorf("new subject '%s' is not valid [%w]", params.Name, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Subject{}, fmt.Errorf(
			"new subject '%s' failed insert [%w]", params.Name, tmp.Error,
		)
	}

	return newEntry.Subject, nil
}

// getSubjectEntry find a subject by ID
func (d *databaseImpl) getSubjectEntry(subjectID string) (SubjectDBEntry, error) {
	var entry SubjectDBEntry
	err := d.db.Where("id = ?", subjectID).First(&entry).Error
	return entry, err
}

/*
GetSubject fetch a subject by ID

	@param ctx context.Context - execution context
	@param subjectID string - subject entry ID
	@returns subject entry
*/
func (d *databaseImpl) GetSubject(_ context.Context, subjectID string) (models.Subject, error) {
	entry, err := d.getSubjectEntry(subjectID)
	if err != nil {
		return models.Subject{}, fmt.Errorf("failed to fetch subject %s [%w]", subjectID, err)
	}

	return entry.Subject, nil
}

/*
UpdateSubjectIdentifiers replace a subject's identifier fields

	@param ctx context.Context - execution context
	@param subjectID string - subject entry ID
	@param update SubjectIdentifierUpdate - the replacement values
*/
func (d *databaseImpl) UpdateSubjectIdentifiers(
	_ context.Context, subjectID string, update SubjectIdentifierUpdate,
) error {
	entry, err := d.getSubjectEntry(subjectID)
	if err != nil {
		return fmt.Errorf("failed to fetch subject %s [%w]", subjectID, err)
	}

	if tmp := d.db.Model(&entry).Updates(map[string]interface{}{
		"national_id":           update.NationalID,
		"national_id_protected": update.NationalIDProtected,
		"registry_id":           update.RegistryID,
		"registry_id_protected": update.RegistryIDProtected,
	}); tmp.Error != nil {
		return fmt.Errorf("subject %s identifier update failed [%w]", subjectID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewSystemEvent(
		models.SystemEventTypeSubjectFieldsProtected,
		models.SystemEventSubjectRelated{
			SubjectID: subjectID, Fields: []string{"national_id", "registry_id"},
		},
	); err != nil {
		return fmt.Errorf(
			"failed to log subject %s field protection audit event [%w]", subjectID, err,
		)
	}

	return nil
}

/*
MarkSubjectAnonymized overwrite a subject's identifying data with redaction
tokens and mark the subject anonymized

	@param ctx context.Context - execution context
	@param subjectID string - subject entry ID
	@param redactedName string - replacement display name
	@param redactedNationalID string - replacement national identity value
	@param redactedRegistryID string - replacement registry identifier value
	@param timestamp time.Time - anonymization timestamp
*/
func (d *databaseImpl) MarkSubjectAnonymized(
	_ context.Context,
	subjectID string,
	redactedName string,
	redactedNationalID string,
	redactedRegistryID string,
	timestamp time.Time,
) error {
	entry, err := d.getSubjectEntry(subjectID)
	if err != nil {
		return fmt.Errorf("failed to fetch subject %s [%w]", subjectID, err)
	}

	if entry.Anonymized {
		return fmt.Errorf("subject %s is already anonymized", subjectID)
	}

	if tmp := d.db.Model(&entry).Updates(map[string]interface{}{
		"name":                  redactedName,
		"national_id":           redactedNationalID,
		"national_id_protected": false,
		"registry_id":           redactedRegistryID,
		"registry_id_protected": false,
		"anonymized":            true,
		"anonymized_at":         timestamp,
	}); tmp.Error != nil {
		return fmt.Errorf("subject %s anonymization update failed [%w]", subjectID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewSystemEvent(
		models.SystemEventTypeSubjectAnonymized,
		models.SystemEventSubjectRelated{
			SubjectID: subjectID,
			Fields:    []string{"name", "national_id", "registry_id"},
		},
	); err != nil {
		return fmt.Errorf(
			"failed to log subject %s anonymization audit event [%w]", subjectID, err,
		)
	}

	return nil
}

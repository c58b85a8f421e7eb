package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/attest/models"
	"github.com/google/uuid"
)

// ======================================================================================
// Rite-of-passage records

/*
DefineNewRiteRecord define new rite-of-passage source record

	@param ctx context.Context - execution context
	@param tenantID string - owning tenant
	@param subjectID string - the subject the rite was performed for
	@param occurredAt time.Time - when the rite took place
	@param location string - where the rite took place
	@param officiant string - who performed the rite
	@returns record entry
*/
func (d *databaseImpl) DefineNewRiteRecord(
	_ context.Context,
	tenantID string,
	subjectID string,
	occurredAt time.Time,
	location string,
	officiant string,
) (models.RiteRecord, error) {
	newEntry := RiteRecordDBEntry{
		RiteRecord: models.RiteRecord{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			SubjectID:  subjectID,
			OccurredAt: occurredAt,
			Location:   location,
			Officiant:  officiant,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.RiteRecord{}, fmt.Errorf(
			"new rite record for subject %s is not valid [%w]", subjectID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.RiteRecord{}, fmt.Errorf(
			"new rite record for subject %s failed insert [%w]", subjectID, tmp.Error,
		)
	}

	return newEntry.RiteRecord, nil
}

/*
GetRiteRecord fetch a rite-of-passage record by ID

	@param ctx context.Context - execution context
	@param recordID string - record entry ID
	@returns record entry
*/
func (d *databaseImpl) GetRiteRecord(
	_ context.Context, recordID string,
) (models.RiteRecord, error) {
	var entry RiteRecordDBEntry
	if tmp := d.db.Where("id = ?", recordID).First(&entry); tmp.Error != nil {
		return models.RiteRecord{}, fmt.Errorf(
			"failed to fetch rite record %s [%w]", recordID, tmp.Error,
		)
	}

	return entry.RiteRecord, nil
}

// ======================================================================================
// Course completion records

/*
DefineNewCompletionRecord define new course completion source record

	@param ctx context.Context - execution context
	@param tenantID string - owning tenant
	@param subjectID string - the subject enrolled in the course
	@param courseName string - course display name
	@param courseDescription string - course display description
	@param status models.CompletionStatusENUMType - the completion status
	@returns record entry
*/
func (d *databaseImpl) DefineNewCompletionRecord(
	_ context.Context,
	tenantID string,
	subjectID string,
	courseName string,
	courseDescription string,
	status models.CompletionStatusENUMType,
) (models.CompletionRecord, error) {
	newEntry := CompletionRecordDBEntry{
		CompletionRecord: models.CompletionRecord{
			ID:                uuid.NewString(),
			TenantID:          tenantID,
			SubjectID:         subjectID,
			CourseName:        courseName,
			CourseDescription: courseDescription,
			Status:            status,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.CompletionRecord{}, fmt.Errorf(
			"new completion record '%s' is not valid [%w]", courseName, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.CompletionRecord{}, fmt.Errorf(
			"new completion record '%s' failed insert [%w]", courseName, tmp.Error,
		)
	}

	return newEntry.CompletionRecord, nil
}

/*
GetCompletionRecord fetch a course completion record by ID

	@param ctx context.Context - execution context
	@param recordID string - record entry ID
	@returns record entry
*/
func (d *databaseImpl) GetCompletionRecord(
	_ context.Context, recordID string,
) (models.CompletionRecord, error) {
	var entry CompletionRecordDBEntry
	if tmp := d.db.Where("id = ?", recordID).First(&entry); tmp.Error != nil {
		return models.CompletionRecord{}, fmt.Errorf(
			"failed to fetch completion record %s [%w]", recordID, tmp.Error,
		)
	}

	return entry.CompletionRecord, nil
}

/*
UpdateCompletionStatus change the status of a course completion record

	@param ctx context.Context - execution context
	@param recordID string - record entry ID
	@param status models.CompletionStatusENUMType - the new status
*/
func (d *databaseImpl) UpdateCompletionStatus(
	_ context.Context, recordID string, status models.CompletionStatusENUMType,
) error {
	var entry CompletionRecordDBEntry
	if tmp := d.db.Where("id = ?", recordID).First(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to fetch completion record %s [%w]", recordID, tmp.Error)
	}

	entry.Status = status
	if err := d.validator.Struct(&entry); err != nil {
		return fmt.Errorf("completion record %s status '%s' is not valid [%w]", recordID, status, err)
	}

	if tmp := d.db.Model(&entry).Update("status", status); tmp.Error != nil {
		return fmt.Errorf("completion record %s status update failed [%w]", recordID, tmp.Error)
	}

	return nil
}

// ======================================================================================
// Event participation records

/*
DefineNewParticipationRecord define new event participation source record

	@param ctx context.Context - execution context
	@param tenantID string - owning tenant
	@param subjectID string - the subject who attended the event
	@param eventTitle string - event display title
	@param eventDate time.Time - when the event took place
	@param attended bool - whether attendance was recorded
	@returns record entry
*/
func (d *databaseImpl) DefineNewParticipationRecord(
	_ context.Context,
	tenantID string,
	subjectID string,
	eventTitle string,
	eventDate time.Time,
	attended bool,
) (models.ParticipationRecord, error) {
	newEntry := ParticipationRecordDBEntry{
		ParticipationRecord: models.ParticipationRecord{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			SubjectID:  subjectID,
			EventTitle: eventTitle,
			EventDate:  eventDate,
			Attended:   attended,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.ParticipationRecord{}, fmt.Errorf(
			"new participation record '%s' is not valid [%w]", eventTitle, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.ParticipationRecord{}, fmt.Errorf(
			"new participation record '%s' failed insert [%w]", eventTitle, tmp.Error,
		)
	}

	return newEntry.ParticipationRecord, nil
}

/*
GetParticipationRecord fetch an event participation record by ID

	@param ctx context.Context - execution context
	@param recordID string - record entry ID
	@returns record entry
*/
func (d *databaseImpl) GetParticipationRecord(
	_ context.Context, recordID string,
) (models.ParticipationRecord, error) {
	var entry ParticipationRecordDBEntry
	if tmp := d.db.Where("id = ?", recordID).First(&entry); tmp.Error != nil {
		return models.ParticipationRecord{}, fmt.Errorf(
			"failed to fetch participation record %s [%w]", recordID, tmp.Error,
		)
	}

	return entry.ParticipationRecord, nil
}

/*
UpdateParticipationAttended change the attendance marker of a participation record

	@param ctx context.Context - execution context
	@param recordID string - record entry ID
	@param attended bool - the new attendance marker
*/
func (d *databaseImpl) UpdateParticipationAttended(
	_ context.Context, recordID string, attended bool,
) error {
	var entry ParticipationRecordDBEntry
	if tmp := d.db.Where("id = ?", recordID).First(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to fetch participation record %s [%w]", recordID, tmp.Error)
	}

	if tmp := d.db.Model(&entry).Update("attended", attended); tmp.Error != nil {
		return fmt.Errorf("participation record %s attendance update failed [%w]", recordID, tmp.Error)
	}

	return nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/attest/models"
	"github.com/google/uuid"
)

// ======================================================================================
// Credentials

/*
InsertCredential persist a fully prepared credential

	@param ctx context.Context - execution context
	@param credential models.Credential - the credential to persist
	@returns credential entry
*/
func (d *databaseImpl) InsertCredential(
	_ context.Context, credential models.Credential,
) (models.Credential, error) {
	if credential.ID == "" {
		credential.ID = uuid.NewString()
	}

	newEntry := CredentialDBEntry{Credential: credential}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Credential{}, fmt.Errorf(
			"new credential '%s' is not valid [%w]", credential.Number, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Credential{}, fmt.Errorf(
			"new credential '%s' failed insert [%w]", credential.Number, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewSystemEvent(
		models.SystemEventTypeCredentialIssued,
		models.SystemEventCredentialRelated{
			CredentialID: newEntry.ID, CredentialNumber: newEntry.Number,
		},
	); err != nil {
		return models.Credential{}, fmt.Errorf(
			"failed to log issue credential '%s' audit event [%w]", credential.Number, err,
		)
	}

	return newEntry.Credential, nil
}

// getCredentialEntry find a credential by ID
func (d *databaseImpl) getCredentialEntry(credentialID string) (CredentialDBEntry, error) {
	var entry CredentialDBEntry
	err := d.db.Where("id = ?", credentialID).First(&entry).Error
	return entry, err
}

/*
GetCredential fetch a credential by ID

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@returns credential entry
*/
func (d *databaseImpl) GetCredential(
	_ context.Context, credentialID string,
) (models.Credential, error) {
	entry, err := d.getCredentialEntry(credentialID)
	if err != nil {
		return models.Credential{}, fmt.Errorf(
			"failed to fetch credential %s [%w]", credentialID, err,
		)
	}

	return entry.Credential, nil
}

/*
GetCredentialByNumber fetch a credential by its credential number

	@param ctx context.Context - execution context
	@param number string - the credential number
	@returns credential entry
*/
func (d *databaseImpl) GetCredentialByNumber(
	_ context.Context, number string,
) (models.Credential, error) {
	var entry CredentialDBEntry
	if tmp := d.db.Where("number = ?", number).First(&entry); tmp.Error != nil {
		return models.Credential{}, fmt.Errorf(
			"failed to fetch credential '%s' [%w]", number, tmp.Error,
		)
	}

	return entry.Credential, nil
}

/*
ListCredentials list credentials

	@param ctx context.Context - execution context
	@param filters CredentialQueryFilter - entry listing filter
	@return list of credentials
*/
func (d *databaseImpl) ListCredentials(
	_ context.Context, filters CredentialQueryFilter,
) ([]models.Credential, error) {
	query := d.db.Model(&CredentialDBEntry{})

	if filters.TargetTenantID != nil {
		query = query.Where("tenant_id = ?", *filters.TargetTenantID)
	}
	if filters.TargetSubjectID != nil {
		query = query.Where("subject_id = ?", *filters.TargetSubjectID)
	}
	if filters.TargetKind != nil {
		query = query.Where("kind = ?", *filters.TargetKind)
	}
	if filters.OnlyUsable {
		query = query.Where("active = ?", true).Where("revoked = ?", false)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("issued_at desc")

	var entries []CredentialDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list credentials [%w]", tmp.Error)
	}

	result := []models.Credential{}
	for _, entry := range entries {
		result = append(result, entry.Credential)
	}

	return result, nil
}

/*
FindUsableCredential find the non-revoked credential for a source triple

	@param ctx context.Context - execution context
	@param tenantID string - owning tenant
	@param subjectID string - the subject
	@param kind models.CredentialKindENUMType - the credential kind
	@param sourceRecordID string - the source record
	@returns the credential entry, or gorm.ErrRecordNotFound
*/
func (d *databaseImpl) FindUsableCredential(
	_ context.Context,
	tenantID string,
	subjectID string,
	kind models.CredentialKindENUMType,
	sourceRecordID string,
) (models.Credential, error) {
	var entry CredentialDBEntry
	tmp := d.db.
		Where("tenant_id = ?", tenantID).
		Where("subject_id = ?", subjectID).
		Where("kind = ?", kind).
		Where("source_record_id = ?", sourceRecordID).
		Where("revoked = ?", false).
		First(&entry)
	if tmp.Error != nil {
		return models.Credential{}, tmp.Error
	}

	return entry.Credential, nil
}

/*
RevokeCredential mark a credential revoked

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param reason string - why the credential is revoked
	@param timestamp time.Time - revocation timestamp
*/
func (d *databaseImpl) RevokeCredential(
	_ context.Context, credentialID string, reason string, timestamp time.Time,
) error {
	entry, err := d.getCredentialEntry(credentialID)
	if err != nil {
		return fmt.Errorf("failed to fetch credential %s [%w]", credentialID, err)
	}

	if err := entry.ValidateRevocation(reason); err != nil {
		return fmt.Errorf("credential %s revocation not allowed [%w]", credentialID, err)
	}

	if tmp := d.db.Model(&entry).Updates(map[string]interface{}{
		"revoked":       true,
		"revoked_at":    timestamp,
		"revoke_reason": reason,
	}); tmp.Error != nil {
		return fmt.Errorf("credential %s revocation update failed [%w]", credentialID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewSystemEvent(
		models.SystemEventTypeCredentialRevoked,
		models.SystemEventCredentialRelated{
			CredentialID: entry.ID, CredentialNumber: entry.Number, Reason: reason,
		},
	); err != nil {
		return fmt.Errorf(
			"failed to log revoke credential '%s' audit event [%w]", entry.Number, err,
		)
	}

	return nil
}

/*
SetCredentialActive toggle the administrative active marker

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param active bool - the new marker value
*/
func (d *databaseImpl) SetCredentialActive(
	_ context.Context, credentialID string, active bool,
) error {
	entry, err := d.getCredentialEntry(credentialID)
	if err != nil {
		return fmt.Errorf("failed to fetch credential %s [%w]", credentialID, err)
	}

	if entry.Active == active {
		// NOOP
		return nil
	}

	if tmp := d.db.Model(&entry).Update("active", active); tmp.Error != nil {
		return fmt.Errorf("credential %s active toggle failed [%w]", credentialID, tmp.Error)
	}

	// Record this event
	eventType := models.SystemEventTypeCredentialDeactivated
	if active {
		eventType = models.SystemEventTypeCredentialReactivated
	}
	if _, err := d.defineNewSystemEvent(
		eventType,
		models.SystemEventCredentialRelated{
			CredentialID: entry.ID, CredentialNumber: entry.Number,
		},
	); err != nil {
		return fmt.Errorf(
			"failed to log credential '%s' active toggle audit event [%w]", entry.Number, err,
		)
	}

	return nil
}

/*
UpdateCredentialHash replace the stored integrity hash and share link

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param newHash string - the recomputed integrity hash
	@param newShareLink string - the regenerated share link
*/
func (d *databaseImpl) UpdateCredentialHash(
	_ context.Context, credentialID string, newHash string, newShareLink string,
) error {
	entry, err := d.getCredentialEntry(credentialID)
	if err != nil {
		return fmt.Errorf("failed to fetch credential %s [%w]", credentialID, err)
	}

	if newHash == "" {
		return fmt.Errorf("credential %s can not store an empty integrity hash", credentialID)
	}

	if tmp := d.db.Model(&entry).Updates(map[string]interface{}{
		"integrity_hash": newHash,
		"share_link":     newShareLink,
	}); tmp.Error != nil {
		return fmt.Errorf("credential %s hash update failed [%w]", credentialID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewSystemEvent(
		models.SystemEventTypeCredentialHashRefreshed,
		models.SystemEventCredentialRelated{
			CredentialID: entry.ID, CredentialNumber: entry.Number,
		},
	); err != nil {
		return fmt.Errorf(
			"failed to log credential '%s' hash refresh audit event [%w]", entry.Number, err,
		)
	}

	return nil
}

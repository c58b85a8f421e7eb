package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/attest/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// SystemEventQueryFilter audit event query filter conditions
type SystemEventQueryFilter struct {
	CommonListEntryQueryFilter
	// EventTypes the specific event types to query for
	EventTypes []models.SystemEventTypeENUMType
	// TargetCredentialID fetch only events whose metadata references this credential
	TargetCredentialID *string
	// TargetSubjectID fetch only events whose metadata references this subject
	TargetSubjectID *string
	// EventsAfter filter for events after this timestamp
	EventsAfter *time.Time
	// EventsBefore filter for events before this timestamp
	EventsBefore *time.Time
}

// CredentialQueryFilter credential query filter conditions
type CredentialQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetTenantID fetch only credentials owned by this tenant
	TargetTenantID *string
	// TargetSubjectID fetch only credentials about this subject
	TargetSubjectID *string
	// TargetKind fetch only credentials of this kind
	TargetKind *models.CredentialKindENUMType
	// OnlyUsable fetch only active, non-revoked credentials
	OnlyUsable bool
}

// ValidationAttemptQueryFilter validation attempt query filter conditions
type ValidationAttemptQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetCredentialID fetch only attempts against this credential
	TargetCredentialID *string
	// OnlyFraudSuspected fetch only fraud-suspected attempts
	OnlyFraudSuspected bool
	// AttemptsAfter filter for attempts after this timestamp
	AttemptsAfter *time.Time
	// AttemptsBefore filter for attempts before this timestamp
	AttemptsBefore *time.Time
}

// NewSubjectParams parameters for defining a new subject
type NewSubjectParams struct {
	// TenantID owning tenant
	TenantID string `validate:"required"`
	// Name subject display name
	Name string `validate:"required"`
	// NationalID optional national identity number, as provided by the caller
	NationalID string
	// NationalIDProtected whether NationalID is already encrypted
	NationalIDProtected bool
	// RegistryID optional secondary registry identifier
	RegistryID string
	// RegistryIDProtected whether RegistryID is already encrypted
	RegistryIDProtected bool
}

// SubjectIdentifierUpdate replacement values for a subject's identifier fields
type SubjectIdentifierUpdate struct {
	// NationalID replacement national identity value
	NationalID string
	// NationalIDProtected whether the replacement value is encrypted
	NationalIDProtected bool
	// RegistryID replacement registry identifier value
	RegistryID string
	// RegistryIDProtected whether the replacement value is encrypted
	RegistryIDProtected bool
}

// Database the database handle to interacting with the data base
type Database interface {
	// ------------------------------------------------------------------------------------
	// System audit events

	/*
		ListSystemEvents list captured system events

			@param ctx context.Context - execution context
			@param filters SystemEventQueryFilter - entry listing filter
			@return list of system events
	*/
	ListSystemEvents(
		ctx context.Context, filters SystemEventQueryFilter,
	) ([]models.SystemEventAudit, error)

	// ------------------------------------------------------------------------------------
	// Subjects

	/*
		DefineNewSubject define new subject

			@param ctx context.Context - execution context
			@param params NewSubjectParams - the subject fields
			@returns subject entry
	*/
	DefineNewSubject(ctx context.Context, params NewSubjectParams) (models.Subject, error)

	/*
		GetSubject fetch a subject by ID

			@param ctx context.Context - execution context
			@param subjectID string - subject entry ID
			@returns subject entry
	*/
	GetSubject(ctx context.Context, subjectID string) (models.Subject, error)

	/*
		UpdateSubjectIdentifiers replace a subject's identifier fields

			@param ctx context.Context - execution context
			@param subjectID string - subject entry ID
			@param update SubjectIdentifierUpdate - the replacement values
	*/
	UpdateSubjectIdentifiers(
		ctx context.Context, subjectID string, update SubjectIdentifierUpdate,
	) error

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
	MarkSubjectAnonymized(
		ctx context.Context,
		subjectID string,
		redactedName string,
		redactedNationalID string,
		redactedRegistryID string,
		timestamp time.Time,
	) error

	// ------------------------------------------------------------------------------------
	// Source records

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
	DefineNewRiteRecord(
		ctx context.Context,
		tenantID string,
		subjectID string,
		occurredAt time.Time,
		location string,
		officiant string,
	) (models.RiteRecord, error)

	/*
		GetRiteRecord fetch a rite-of-passage record by ID

			@param ctx context.Context - execution context
			@param recordID string - record entry ID
			@returns record entry
	*/
	GetRiteRecord(ctx context.Context, recordID string) (models.RiteRecord, error)

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
	DefineNewCompletionRecord(
		ctx context.Context,
		tenantID string,
		subjectID string,
		courseName string,
		courseDescription string,
		status models.CompletionStatusENUMType,
	) (models.CompletionRecord, error)

	/*
		GetCompletionRecord fetch a course completion record by ID

			@param ctx context.Context - execution context
			@param recordID string - record entry ID
			@returns record entry
	*/
	GetCompletionRecord(ctx context.Context, recordID string) (models.CompletionRecord, error)

	/*
		UpdateCompletionStatus change the status of a course completion record

			@param ctx context.Context - execution context
			@param recordID string - record entry ID
			@param status models.CompletionStatusENUMType - the new status
	*/
	UpdateCompletionStatus(
		ctx context.Context, recordID string, status models.CompletionStatusENUMType,
	) error

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
	DefineNewParticipationRecord(
		ctx context.Context,
		tenantID string,
		subjectID string,
		eventTitle string,
		eventDate time.Time,
		attended bool,
	) (models.ParticipationRecord, error)

	/*
		GetParticipationRecord fetch an event participation record by ID

			@param ctx context.Context - execution context
			@param recordID string - record entry ID
			@returns record entry
	*/
	GetParticipationRecord(
		ctx context.Context, recordID string,
	) (models.ParticipationRecord, error)

	/*
		UpdateParticipationAttended change the attendance marker of a participation record

			@param ctx context.Context - execution context
			@param recordID string - record entry ID
			@param attended bool - the new attendance marker
	*/
	UpdateParticipationAttended(ctx context.Context, recordID string, attended bool) error

	// ------------------------------------------------------------------------------------
	// Credentials

	/*
		InsertCredential persist a fully prepared credential

		The credential must already carry its number and integrity hash; a
		credential missing either never becomes observable.

			@param ctx context.Context - execution context
			@param credential models.Credential - the credential to persist
			@returns credential entry
	*/
	InsertCredential(ctx context.Context, credential models.Credential) (models.Credential, error)

	/*
		GetCredential fetch a credential by ID

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@returns credential entry
	*/
	GetCredential(ctx context.Context, credentialID string) (models.Credential, error)

	/*
		GetCredentialByNumber fetch a credential by its credential number

			@param ctx context.Context - execution context
			@param number string - the credential number
			@returns credential entry
	*/
	GetCredentialByNumber(ctx context.Context, number string) (models.Credential, error)

	/*
		ListCredentials list credentials

			@param ctx context.Context - execution context
			@param filters CredentialQueryFilter - entry listing filter
			@return list of credentials
	*/
	ListCredentials(
		ctx context.Context, filters CredentialQueryFilter,
	) ([]models.Credential, error)

	/*
		FindUsableCredential find the non-revoked credential for a source triple

			@param ctx context.Context - execution context
			@param tenantID string - owning tenant
			@param subjectID string - the subject
			@param kind models.CredentialKindENUMType - the credential kind
			@param sourceRecordID string - the source record
			@returns the credential entry, or gorm.ErrRecordNotFound
	*/
	FindUsableCredential(
		ctx context.Context,
		tenantID string,
		subjectID string,
		kind models.CredentialKindENUMType,
		sourceRecordID string,
	) (models.Credential, error)

	/*
		RevokeCredential mark a credential revoked

		Revocation is terminal.

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param reason string - why the credential is revoked
			@param timestamp time.Time - revocation timestamp
	*/
	RevokeCredential(
		ctx context.Context, credentialID string, reason string, timestamp time.Time,
	) error

	/*
		SetCredentialActive toggle the administrative active marker

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param active bool - the new marker value
	*/
	SetCredentialActive(ctx context.Context, credentialID string, active bool) error

	/*
		UpdateCredentialHash replace the stored integrity hash and share link

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param newHash string - the recomputed integrity hash
			@param newShareLink string - the regenerated share link
	*/
	UpdateCredentialHash(
		ctx context.Context, credentialID string, newHash string, newShareLink string,
	) error

	// ------------------------------------------------------------------------------------
	// Validation attempts

	/*
		RecordValidationAttempt append one validation attempt row

		Attempt rows are never mutated or deleted.

			@param ctx context.Context - execution context
			@param attempt models.ValidationAttempt - the attempt to record
			@returns attempt entry
	*/
	RecordValidationAttempt(
		ctx context.Context, attempt models.ValidationAttempt,
	) (models.ValidationAttempt, error)

	/*
		ListValidationAttempts list validation attempts

			@param ctx context.Context - execution context
			@param filters ValidationAttemptQueryFilter - entry listing filter
			@return list of attempts
	*/
	ListValidationAttempts(
		ctx context.Context, filters ValidationAttemptQueryFilter,
	) ([]models.ValidationAttempt, error)
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "attest", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}

// Package store - credential issuance, verification, and subject privacy controllers
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/encryption"
	"github.com/alwitt/attest/integrity"
	"github.com/alwitt/attest/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidKind the requested credential kind is not in the closed set
	ErrInvalidKind = errors.New("unknown credential kind")
	// ErrSourceRecordNotFound the referenced source record does not exist
	ErrSourceRecordNotFound = errors.New("source record not found")
	// ErrSourceRecordMismatch the source record belongs to another subject or tenant
	ErrSourceRecordMismatch = errors.New("source record does not match subject or tenant")
	// ErrSourceRecordIneligible the source record fails its kind's completion predicate
	ErrSourceRecordIneligible = errors.New("source record does not satisfy issuance predicate")
	// ErrSubjectTenantMismatch the subject belongs to another tenant
	ErrSubjectTenantMismatch = errors.New("subject belongs to another tenant")
	// ErrDuplicateCredential a non-revoked credential already covers this source record
	ErrDuplicateCredential = errors.New("credential already issued for this source record")
	// ErrSubjectAnonymized the subject's identifying data was already redacted
	ErrSubjectAnonymized = errors.New("subject is anonymized")
	// ErrFieldProtectionDisabled no field secret is configured
	ErrFieldProtectionDisabled = errors.New("field protection is not configured")
)

// IssueCredentialRequest parameters for issuing one credential
type IssueCredentialRequest struct {
	// TenantID owning tenant of the new credential
	TenantID string `validate:"required"`
	// SubjectID the person the credential is about
	SubjectID string `validate:"required,uuid_rfc4122"`
	// Kind the credential category
	Kind models.CredentialKindENUMType `validate:"required,credential_kind"`
	// Title credential display title
	Title string `validate:"required"`
	// Description credential display description
	Description string
	// SourceRecordID the kind-specific source record backing the credential
	SourceRecordID string `validate:"required,uuid_rfc4122"`
	// IssuedAt issuance timestamp; zero value means now
	IssuedAt time.Time
	// IssuedBy display name of the issuing actor
	IssuedBy string
	// ValidUntil optional expiry timestamp
	ValidUntil *time.Time
}

// VerifyCredentialRequest parameters of one verification call
type VerifyCredentialRequest struct {
	// Number the credential number as presented by the caller
	Number string `validate:"required"`
	// PresentedHash the integrity hash as presented by the caller
	PresentedHash string `validate:"required"`
	// CallerOrigin network origin of the caller, recorded on the attempt row
	CallerOrigin string
}

// VerifiedSubject subject summary returned on successful verification
type VerifiedSubject struct {
	// ID subject entry ID
	ID string
	// Name subject display name
	Name string
}

// VerifiedSource kind-specific source record summary returned on successful verification
type VerifiedSource struct {
	// ID source record entry ID
	ID string
	// Kind the credential kind the record backs
	Kind models.CredentialKindENUMType
	// Display the record's primary display field
	Display string
	// OccurredAt when the underlying fact took place, if the record carries one
	OccurredAt *time.Time
}

// VerificationResult the outcome of one verification call
//
// The recomputed integrity hash is never part of the result.
type VerificationResult struct {
	// IsValid whether all verification checks passed
	IsValid bool
	// FraudAlert set only for not-found numbers and hash mismatches
	FraudAlert bool
	// Outcome the computed verdict
	Outcome models.ValidationOutcomeENUMType
	// Reason human readable failure reason
	Reason string

	// Revoked whether the credential was revoked
	Revoked bool
	// RevokeReason why the credential was revoked
	RevokeReason string
	// RevokedAt revocation timestamp
	RevokedAt *time.Time

	// Credential public display fields; set when the number resolved
	Credential *models.Credential
	// Subject subject summary; set on a valid verdict
	Subject *VerifiedSubject
	// Source source record summary; set on a valid verdict when the record still exists
	Source *VerifiedSource

	// Warnings advisory cross-reference warnings; the verdict stays valid
	Warnings []string
}

// SubjectIdentifiers decrypted subject identifier fields
type SubjectIdentifiers struct {
	// NationalID national identity number in plain text
	NationalID string
	// RegistryID secondary registry identifier in plain text
	RegistryID string
}

// CredentialAuthority issues, verifies, and administers offline-verifiable credentials
type CredentialAuthority interface {
	/*
		IssueCredential issue a new credential backed by a source record

			@param ctx context.Context - execution context
			@param request IssueCredentialRequest - issuance parameters
			@param activeDBClient Database - existing database transaction
			@returns the issued credential
	*/
	IssueCredential(
		ctx context.Context, request IssueCredentialRequest, activeDBClient db.Database,
	) (models.Credential, error)

	/*
		VerifyCredential verify a presented credential number and hash

		Exactly one validation attempt row is recorded per call.

			@param ctx context.Context - execution context
			@param request VerifyCredentialRequest - verification parameters
			@param activeDBClient Database - existing database transaction
			@returns the verification result
	*/
	VerifyCredential(
		ctx context.Context, request VerifyCredentialRequest, activeDBClient db.Database,
	) (VerificationResult, error)

	/*
		RevokeCredential revoke a credential

		Revocation is terminal.

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param reason string - why the credential is revoked
			@param activeDBClient Database - existing database transaction
	*/
	RevokeCredential(
		ctx context.Context, credentialID string, reason string, activeDBClient db.Database,
	) error

	/*
		DeactivateCredential administratively deactivate a credential

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param activeDBClient Database - existing database transaction
	*/
	DeactivateCredential(ctx context.Context, credentialID string, activeDBClient db.Database) error

	/*
		ReactivateCredential administratively reactivate a credential

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param activeDBClient Database - existing database transaction
	*/
	ReactivateCredential(ctx context.Context, credentialID string, activeDBClient db.Database) error

	/*
		RefreshCredentialHash recompute and store a credential's integrity hash

		Rows still carrying the retired hash format are upgraded to the current
		format by this call.

			@param ctx context.Context - execution context
			@param credentialID string - credential entry ID
			@param activeDBClient Database - existing database transaction
			@returns the updated credential
	*/
	RefreshCredentialHash(
		ctx context.Context, credentialID string, activeDBClient db.Database,
	) (models.Credential, error)

	/*
		ListCredentials list credentials

			@param ctx context.Context - execution context
			@param filters db.CredentialQueryFilter - entry listing filter
			@param activeDBClient Database - existing database transaction
			@returns list of credentials
	*/
	ListCredentials(
		ctx context.Context, filters db.CredentialQueryFilter, activeDBClient db.Database,
	) ([]models.Credential, error)

	/*
		ListValidationAttempts list validation attempts

			@param ctx context.Context - execution context
			@param filters db.ValidationAttemptQueryFilter - entry listing filter
			@param activeDBClient Database - existing database transaction
			@returns list of attempts
	*/
	ListValidationAttempts(
		ctx context.Context, filters db.ValidationAttemptQueryFilter, activeDBClient db.Database,
	) ([]models.ValidationAttempt, error)

	/*
		ProtectSubjectIdentifiers encrypt a subject's plain text identifier fields

			@param ctx context.Context - execution context
			@param subjectID string - subject entry ID
			@param activeDBClient Database - existing database transaction
	*/
	ProtectSubjectIdentifiers(ctx context.Context, subjectID string, activeDBClient db.Database) error

	/*
		RevealSubjectIdentifiers decrypt a subject's identifier fields

			@param ctx context.Context - execution context
			@param subjectID string - subject entry ID
			@param activeDBClient Database - existing database transaction
			@returns the plain text identifiers
	*/
	RevealSubjectIdentifiers(
		ctx context.Context, subjectID string, activeDBClient db.Database,
	) (SubjectIdentifiers, error)

	/*
		AnonymizeSubject irreversibly redact a subject's identifying data

		Issued credentials and validation history are untouched.

			@param ctx context.Context - execution context
			@param subjectID string - subject entry ID
			@param activeDBClient Database - existing database transaction
	*/
	AnonymizeSubject(ctx context.Context, subjectID string, activeDBClient db.Database) error

	/*
		BuildShareLink build the shareable verification URL for a credential

			@param number string - the credential number
			@param hash string - the credential integrity hash
			@returns the verification URL
	*/
	BuildShareLink(number string, hash string) string
}

// credentialAuthority implements CredentialAuthority
type credentialAuthority struct {
	goutils.Component

	persistence db.Client

	hashEngine  integrity.HashEngine
	numberGen   integrity.NumberGenerator
	fieldCipher encryption.FieldCipher

	verifyBaseURL string

	validator *validator.Validate
}

// CredentialAuthorityParams credential authority init parameters
type CredentialAuthorityParams struct {
	// Persistence persistence layer client
	Persistence db.Client `validate:"-"`
	// HashSecret the credential hashing secret. Issuance refuses to start
	// without one.
	HashSecret string `validate:"required"`
	// FieldSecret the subject field encryption secret. Empty disables field
	// protection.
	FieldSecret string
	// LegacyDecode pass through stored field values lacking the encrypted wire
	// format
	LegacyDecode bool
	// LegacyHashVerify also accept the retired hash format during verification
	LegacyHashVerify bool
	// VerifyBaseURL base URL for generated share links
	VerifyBaseURL string `validate:"omitempty,url"`
}

/*
NewCredentialAuthority define new credential authority

	@param ctx context.Context - execution context
	@param params CredentialAuthorityParams - authority parameters
	@returns authority instance
*/
func NewCredentialAuthority(
	ctx context.Context, params CredentialAuthorityParams,
) (CredentialAuthority, error) {
	logTags := log.Fields{"module": "store", "component": "credential-authority"}

	instance := &credentialAuthority{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence:   params.Persistence,
		numberGen:     integrity.NewNumberGenerator(),
		verifyBaseURL: params.VerifyBaseURL,
		validator:     validator.New(),
	}
	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid authority init parameters [%w]", err)
	}
	if params.Persistence == nil {
		return nil, fmt.Errorf("authority requires a persistence client")
	}

	var err error
	instance.hashEngine, err = integrity.NewHashEngine(ctx, integrity.HashEngineParams{
		Secret: params.HashSecret, LegacyVerify: params.LegacyHashVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential hash engine [%w]", err)
	}

	instance.fieldCipher, err = encryption.NewFieldCipher(ctx, encryption.FieldCipherParams{
		Secret: params.FieldSecret, LegacyDecode: params.LegacyDecode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare field cipher [%w]", err)
	}

	return instance, nil
}

/*
BuildShareLink build the shareable verification URL for a credential

	@param number string - the credential number
	@param hash string - the credential integrity hash
	@returns the verification URL
*/
func (s *credentialAuthority) BuildShareLink(number string, hash string) string {
	if s.verifyBaseURL == "" {
		return ""
	}

	link, err := url.Parse(s.verifyBaseURL)
	if err != nil {
		return ""
	}

	query := link.Query()
	query.Set("number", number)
	query.Set("hash", hash)
	link.RawQuery = query.Encode()
	return link.String()
}

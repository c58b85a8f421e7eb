package models

import (
	"time"

	"gorm.io/datatypes"
)

// ValidationOutcomeENUMType verification verdict enum type
type ValidationOutcomeENUMType string

const (
	// ValidationOutcomeValid all verification checks passed
	ValidationOutcomeValid ValidationOutcomeENUMType = "VALID"
	// ValidationOutcomeNotFound the presented credential number does not exist
	ValidationOutcomeNotFound ValidationOutcomeENUMType = "NOT_FOUND"
	// ValidationOutcomeRevoked the credential was revoked
	ValidationOutcomeRevoked ValidationOutcomeENUMType = "REVOKED"
	// ValidationOutcomeInactive the credential is administratively inactive
	ValidationOutcomeInactive ValidationOutcomeENUMType = "INACTIVE"
	// ValidationOutcomeExpired the credential expiry has passed
	ValidationOutcomeExpired ValidationOutcomeENUMType = "EXPIRED"
	// ValidationOutcomeHashMismatch the presented hash failed the integrity checks
	ValidationOutcomeHashMismatch ValidationOutcomeENUMType = "HASH_MISMATCH"
)

// ValidationAttempt append-only record of a single verification call
//
// Exactly one row is written per verification, including failed lookups where
// the number never resolved; those rows carry a NULL credential reference and
// are the strongest fraud signal.
type ValidationAttempt struct {
	// ID attempt entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`

	// CredentialID the verified credential; nil when the number did not resolve
	CredentialID *string `json:"credential_id,omitempty" gorm:"column:credential_id;default:null"`
	// PresentedNumber the credential number as presented by the caller
	PresentedNumber string `json:"presented_number" gorm:"column:presented_number;not null" validate:"required"`

	// Outcome the computed verdict
	Outcome ValidationOutcomeENUMType `json:"outcome" gorm:"column:outcome;not null" validate:"required,validation_outcome"`
	// FraudSuspected whether the outcome indicates forgery or tampering
	FraudSuspected bool `json:"fraud_suspected" gorm:"column:fraud_suspected;not null;default:false"`
	// Reason human readable failure reason
	Reason string `json:"reason,omitempty" gorm:"column:reason"`

	// CallerOrigin network origin of the verification caller
	CallerOrigin string `json:"caller_origin,omitempty" gorm:"column:caller_origin"`
	// Metadata additional context, e.g. cross-reference warnings
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidationAttemptMetadata structured metadata attached to an attempt row
type ValidationAttemptMetadata struct {
	// Warnings cross-reference warnings surfaced during verification
	Warnings []string `json:"warnings,omitempty"`
}

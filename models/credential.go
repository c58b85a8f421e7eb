// Package models - system data models
package models

import (
	"fmt"
	"time"
)

// CredentialKindENUMType credential category enum type
type CredentialKindENUMType string

const (
	// CredentialKindRiteOfPassage credential attesting a rite-of-passage record
	CredentialKindRiteOfPassage CredentialKindENUMType = "RITE_OF_PASSAGE"
	// CredentialKindCourseCompletion credential attesting a course completion record
	CredentialKindCourseCompletion CredentialKindENUMType = "COURSE_COMPLETION"
	// CredentialKindEventParticipation credential attesting an event participation record
	CredentialKindEventParticipation CredentialKindENUMType = "EVENT_PARTICIPATION"
)

/*
ParseCredentialKind validate and return a CredentialKindENUMType

	@param s string - the raw kind value
	@returns the parsed kind
*/
func ParseCredentialKind(s string) (CredentialKindENUMType, error) {
	kind := CredentialKindENUMType(s)
	switch kind {
	case CredentialKindRiteOfPassage:
		fallthrough
	case CredentialKindCourseCompletion:
		fallthrough
	case CredentialKindEventParticipation:
		return kind, nil
	}
	return "", fmt.Errorf("unknown credential kind '%s'", s)
}

// Credential an issued, offline-verifiable credential
//
// The integrity hash binds the display fields to the credential at issuance
// time; it is recomputed, never copied, during verification.
type Credential struct {
	// ID credential entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// TenantID owning tenant of the credential
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;not null" validate:"required"`

	// Number globally unique, human-transcribable credential number
	Number string `json:"number" gorm:"column:number;not null;unique" validate:"required"`

	// Kind the credential category
	Kind CredentialKindENUMType `json:"kind" gorm:"column:kind;not null" validate:"required,credential_kind"`

	// Title credential display title
	Title string `json:"title" gorm:"column:title;not null" validate:"required"`
	// Description credential display description
	Description string `json:"description,omitempty" gorm:"column:description"`

	// SubjectID the person the credential is about
	SubjectID string `json:"subject_id" gorm:"column:subject_id;not null" validate:"required,uuid_rfc4122"`
	// SourceRecordID the kind-specific source record backing this credential
	SourceRecordID string `json:"source_record_id" gorm:"column:source_record_id;not null" validate:"required,uuid_rfc4122"`

	// IssuedAt issuance timestamp
	IssuedAt time.Time `json:"issued_at" gorm:"column:issued_at;not null" validate:"required"`
	// IssuedBy display name of the issuing actor
	IssuedBy string `json:"issued_by,omitempty" gorm:"column:issued_by"`
	// ValidUntil optional expiry timestamp; nil means no expiry
	ValidUntil *time.Time `json:"valid_until,omitempty" gorm:"column:valid_until;default:null"`

	// IntegrityHash keyed digest over the canonical credential field set
	IntegrityHash string `json:"integrity_hash" gorm:"column:integrity_hash;not null" validate:"required"`
	// ShareLink verification URL embedding the number and hash
	ShareLink string `json:"share_link,omitempty" gorm:"column:share_link"`

	// Active administrative toggle; inactive credentials fail verification
	Active bool `json:"active" gorm:"column:active;not null;default:true"`

	// Revoked terminal revocation marker
	Revoked bool `json:"revoked" gorm:"column:revoked;not null;default:false"`
	// RevokedAt revocation timestamp
	RevokedAt *time.Time `json:"revoked_at,omitempty" gorm:"column:revoked_at;default:null"`
	// RevokeReason why the credential was revoked
	RevokeReason string `json:"revoke_reason,omitempty" gorm:"column:revoke_reason"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateRevocation verify the credential can be revoked
//
// Revocation is terminal; there is no un-revoke transition.
func (c *Credential) ValidateRevocation(reason string) error {
	if c.Revoked {
		return fmt.Errorf("credential '%s' is already revoked", c.Number)
	}
	if reason == "" {
		return fmt.Errorf("credential '%s' revocation requires a reason", c.Number)
	}
	return nil
}

// Expired whether the credential expiry has passed as of the given time
func (c *Credential) Expired(now time.Time) bool {
	return c.ValidUntil != nil && c.ValidUntil.Before(now)
}

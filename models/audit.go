package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// SystemEventTypeENUMType system event type ENUM value type
type SystemEventTypeENUMType string

const (
	// SystemEventTypeCredentialIssued a new credential was issued
	SystemEventTypeCredentialIssued SystemEventTypeENUMType = "CREDENTIAL_ISSUED"

	// SystemEventTypeCredentialRevoked a credential was revoked
	SystemEventTypeCredentialRevoked SystemEventTypeENUMType = "CREDENTIAL_REVOKED"

	// SystemEventTypeCredentialDeactivated a credential was administratively deactivated
	SystemEventTypeCredentialDeactivated SystemEventTypeENUMType = "CREDENTIAL_DEACTIVATED"

	// SystemEventTypeCredentialReactivated a credential was administratively reactivated
	SystemEventTypeCredentialReactivated SystemEventTypeENUMType = "CREDENTIAL_REACTIVATED"

	// SystemEventTypeCredentialHashRefreshed a credential integrity hash was recomputed
	SystemEventTypeCredentialHashRefreshed SystemEventTypeENUMType = "CREDENTIAL_HASH_REFRESHED"

	// SystemEventTypeSubjectFieldsProtected subject identifier fields were encrypted
	SystemEventTypeSubjectFieldsProtected SystemEventTypeENUMType = "SUBJECT_FIELDS_PROTECTED"

	// SystemEventTypeSubjectAnonymized subject identifying data was irreversibly redacted
	SystemEventTypeSubjectAnonymized SystemEventTypeENUMType = "SUBJECT_ANONYMIZED"
)

// SystemEventAudit recording of events occurring at the system level
type SystemEventAudit struct {
	// ID audit entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`
	// EventType system event type
	EventType SystemEventTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,system_event_type"`
	// Metadata a metadata relating to the event
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`
	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseMetadata parse the metadata based on the event type
func (a SystemEventAudit) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	switch a.EventType {
	// Credential related system audit events
	case SystemEventTypeCredentialIssued:
		fallthrough
	case SystemEventTypeCredentialRevoked:
		fallthrough
	case SystemEventTypeCredentialDeactivated:
		fallthrough
	case SystemEventTypeCredentialReactivated:
		fallthrough
	case SystemEventTypeCredentialHashRefreshed:
		var parsed SystemEventCredentialRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("system event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Subject related system audit events
	case SystemEventTypeSubjectFieldsProtected:
		fallthrough
	case SystemEventTypeSubjectAnonymized:
		var parsed SystemEventSubjectRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("system event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)
	}
	return nil, nil
}

// SystemEventCredentialRelated system event metadata related to a credential
type SystemEventCredentialRelated struct {
	// CredentialID the credential entry ID
	CredentialID string `json:"credential_id" validate:"required,uuid_rfc4122"`
	// CredentialNumber the credential number
	CredentialNumber string `json:"credential_number" validate:"required"`
	// Reason optional reason for the event, e.g. the revocation reason
	Reason string `json:"reason,omitempty"`
}

// SystemEventSubjectRelated system event metadata related to a subject
type SystemEventSubjectRelated struct {
	// SubjectID the subject entry ID
	SubjectID string `json:"subject_id" validate:"required,uuid_rfc4122"`
	// Fields the subject fields affected
	Fields []string `json:"fields,omitempty"`
}

package models

import "time"

// Subject a person credentials are issued about
//
// The national registry identifiers are regulated personal data. Each
// identifier carries a companion flag stating whether the stored value is
// actually protected; plaintext values from before field encryption was
// enabled carry a false flag until migrated.
type Subject struct {
	// ID subject entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// TenantID owning tenant of the subject
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;not null" validate:"required"`

	// Name subject display name, as printed on issued credentials
	Name string `json:"name" gorm:"column:name;not null" validate:"required"`

	// NationalID national identity number, stored encrypted when protected
	NationalID string `json:"national_id,omitempty" gorm:"column:national_id"`
	// NationalIDProtected whether NationalID holds an encrypted value
	NationalIDProtected bool `json:"national_id_protected" gorm:"column:national_id_protected;not null;default:false"`

	// RegistryID secondary registry identifier, stored encrypted when protected
	RegistryID string `json:"registry_id,omitempty" gorm:"column:registry_id"`
	// RegistryIDProtected whether RegistryID holds an encrypted value
	RegistryIDProtected bool `json:"registry_id_protected" gorm:"column:registry_id_protected;not null;default:false"`

	// Anonymized whether the subject's identifying data was irreversibly redacted
	Anonymized bool `json:"anonymized" gorm:"column:anonymized;not null;default:false"`
	// AnonymizedAt redaction timestamp
	AnonymizedAt *time.Time `json:"anonymized_at,omitempty" gorm:"column:anonymized_at;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

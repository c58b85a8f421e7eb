package models

import "time"

// CompletionStatusENUMType course completion status enum type
type CompletionStatusENUMType string

const (
	// CompletionStatusInProgress course is still in progress
	CompletionStatusInProgress CompletionStatusENUMType = "IN_PROGRESS"
	// CompletionStatusCompleted course was completed
	CompletionStatusCompleted CompletionStatusENUMType = "COMPLETED"
	// CompletionStatusDropped course was abandoned
	CompletionStatusDropped CompletionStatusENUMType = "DROPPED"
)

// RiteRecord a rite-of-passage source record
//
// Source record backing CredentialKindRiteOfPassage credentials.
type RiteRecord struct {
	// ID record entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`
	// TenantID owning tenant of the record
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;not null" validate:"required"`
	// SubjectID the subject the rite was performed for
	SubjectID string `json:"subject_id" gorm:"column:subject_id;not null" validate:"required,uuid_rfc4122"`
	// OccurredAt when the rite took place
	OccurredAt time.Time `json:"occurred_at" gorm:"column:occurred_at;not null" validate:"required"`
	// Location where the rite took place
	Location string `json:"location,omitempty" gorm:"column:location"`
	// Officiant who performed the rite
	Officiant string `json:"officiant,omitempty" gorm:"column:officiant"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// CompletionRecord a course completion source record
//
// Source record backing CredentialKindCourseCompletion credentials. Only
// records in CompletionStatusCompleted satisfy the issuance predicate.
type CompletionRecord struct {
	// ID record entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`
	// TenantID owning tenant of the record
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;not null" validate:"required"`
	// SubjectID the subject enrolled in the course
	SubjectID string `json:"subject_id" gorm:"column:subject_id;not null" validate:"required,uuid_rfc4122"`
	// CourseName course display name
	CourseName string `json:"course_name" gorm:"column:course_name;not null" validate:"required"`
	// CourseDescription course display description
	CourseDescription string `json:"course_description,omitempty" gorm:"column:course_description"`
	// Status the completion status
	Status CompletionStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,completion_status"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// Completed whether the record satisfies the completion predicate
func (r *CompletionRecord) Completed() bool {
	return r.Status == CompletionStatusCompleted
}

// ParticipationRecord an event participation source record
//
// Source record backing CredentialKindEventParticipation credentials. Only
// records with Attended set satisfy the issuance predicate.
type ParticipationRecord struct {
	// ID record entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`
	// TenantID owning tenant of the record
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;not null" validate:"required"`
	// SubjectID the subject who attended the event
	SubjectID string `json:"subject_id" gorm:"column:subject_id;not null" validate:"required,uuid_rfc4122"`
	// EventTitle event display title
	EventTitle string `json:"event_title" gorm:"column:event_title;not null" validate:"required"`
	// EventDate when the event took place
	EventDate time.Time `json:"event_date" gorm:"column:event_date;not null" validate:"required"`
	// Attended whether attendance was actually recorded
	Attended bool `json:"attended" gorm:"column:attended;not null;default:false"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

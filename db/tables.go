package db

import (
	"context"
	"strings"

	"github.com/alwitt/attest/models"
	"gorm.io/gorm"
)

// --------------------------------------------------------------------------------------
// System audit events

// SystemEventAuditDBEntry system audit event DB entry
type SystemEventAuditDBEntry struct {
	models.SystemEventAudit
}

// TableName hard code table name
func (SystemEventAuditDBEntry) TableName() string {
	return "system_audit_events"
}

// --------------------------------------------------------------------------------------
// Subjects

// SubjectDBEntry subject DB entry
type SubjectDBEntry struct {
	models.Subject
}

// TableName hard code table name
func (SubjectDBEntry) TableName() string {
	return "subjects"
}

// --------------------------------------------------------------------------------------
// Source records

// RiteRecordDBEntry rite-of-passage source record DB entry
type RiteRecordDBEntry struct {
	models.RiteRecord
	Subject SubjectDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubjectID" validate:"-"`
}

// TableName hard code table name
func (RiteRecordDBEntry) TableName() string {
	return "rite_records"
}

// CompletionRecordDBEntry course completion source record DB entry
type CompletionRecordDBEntry struct {
	models.CompletionRecord
	Subject SubjectDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubjectID" validate:"-"`
}

// TableName hard code table name
func (CompletionRecordDBEntry) TableName() string {
	return "completion_records"
}

// ParticipationRecordDBEntry event participation source record DB entry
type ParticipationRecordDBEntry struct {
	models.ParticipationRecord
	Subject SubjectDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:SubjectID" validate:"-"`
}

// TableName hard code table name
func (ParticipationRecordDBEntry) TableName() string {
	return "participation_records"
}

// --------------------------------------------------------------------------------------
// Credentials

// CredentialDBEntry credential DB entry
type CredentialDBEntry struct {
	models.Credential
	Subject SubjectDBEntry `gorm:"constraint:OnDelete:RESTRICT;foreignKey:SubjectID" validate:"-"`
}

// TableName hard code table name
func (CredentialDBEntry) TableName() string {
	return "credentials"
}

// --------------------------------------------------------------------------------------
// Validation attempts

// ValidationAttemptDBEntry validation attempt DB entry
type ValidationAttemptDBEntry struct {
	models.ValidationAttempt
	Credential *CredentialDBEntry `gorm:"constraint:OnDelete:SET NULL;foreignKey:CredentialID" validate:"-"`
}

// TableName hard code table name
func (ValidationAttemptDBEntry) TableName() string {
	return "validation_attempts"
}

// --------------------------------------------------------------------------------------
// Table setup

/*
DefineTables prepare a database with tables and constraints.

Meant for unit testing and embedded deployments; production schema changes go
through the migration tooling.

	@param ctx context.Context - execution context
	@param db *gorm.DB - database handle
*/
func DefineTables(_ context.Context, db *gorm.DB) error {
	if err := db.AutoMigrate(
		SystemEventAuditDBEntry{},
		SubjectDBEntry{},
		RiteRecordDBEntry{},
		CompletionRecordDBEntry{},
		ParticipationRecordDBEntry{},
		CredentialDBEntry{},
		ValidationAttemptDBEntry{},
	); err != nil {
		return err
	}

	// The duplicate-credential guard: at most one non-revoked credential per
	// (tenant, subject, kind, source record). The application-level duplicate
	// check is only a fast path for a clean error message; this index is the
	// actual correctness guarantee under concurrent issuance.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_credentials_usable_source
		 ON credentials (tenant_id, subject_id, kind, source_record_id)
		 WHERE revoked = 0`,
	).Error
}

/*
IsUniqueViolation check whether an error is a uniqueness constraint violation
touching the given column hint

	@param err error - the error to inspect
	@param columnHint string - a column or index fragment expected in the message
	@returns whether the error is a matching unique violation
*/
func IsUniqueViolation(err error, columnHint string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return false
	}
	return columnHint == "" || strings.Contains(msg, columnHint)
}

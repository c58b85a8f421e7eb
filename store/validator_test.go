package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/models"
	"github.com/alwitt/attest/store"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// utIssueForVerification seed a subject with a completed course and issue a
// credential against it
func utIssueForVerification(
	t *testing.T, dbClient db.Client, uut store.CredentialAuthority, tenantID string,
) (models.Subject, models.CompletionRecord, models.Credential) {
	assert := assert.New(t)

	utCtx := context.Background()

	var subject models.Subject
	var course models.CompletionRecord
	err := dbClient.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbSession db.Database) error {
			var err error
			subject, err = dbSession.DefineNewSubject(ctx, db.NewSubjectParams{
				TenantID: tenantID, Name: "Test Subject " + uuid.NewString(),
			})
			if err != nil {
				return err
			}
			course, err = dbSession.DefineNewCompletionRecord(
				ctx, tenantID, subject.ID, "Advanced Course", "", models.CompletionStatusCompleted,
			)
			return err
		},
	)
	assert.Nil(err)

	issued, err := uut.IssueCredential(utCtx, store.IssueCredentialRequest{
		TenantID:       tenantID,
		SubjectID:      subject.ID,
		Kind:           models.CredentialKindCourseCompletion,
		Title:          "Advanced Course",
		SourceRecordID: course.ID,
	}, nil)
	assert.Nil(err)

	return subject, course, issued
}

// utListAttempts fetch the validation attempt rows for one credential
func utListAttempts(
	t *testing.T, uut store.CredentialAuthority, credentialID *string,
) []models.ValidationAttempt {
	assert := assert.New(t)

	attempts, err := uut.ListValidationAttempts(
		context.Background(), db.ValidationAttemptQueryFilter{TargetCredentialID: credentialID}, nil,
	)
	assert.Nil(err)
	return attempts
}

func TestAuthorityVerifyCredential(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	dbClient, uut := utPrepareAuthority(t, store.CredentialAuthorityParams{
		HashSecret: uuid.NewString(),
	})

	tenantID := uuid.NewString()
	_, course, issued := utIssueForVerification(t, dbClient, uut, tenantID)

	// -------------------------------------------------------------------------
	// 1 - A never-issued number is not found and fraud flagged
	result, err := uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: "CERT-1000000000000-00000000", PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.False(result.IsValid)
	assert.True(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeNotFound, result.Outcome)
	assert.Nil(result.Credential)

	// The attempt row carries no credential reference
	attempts, err := uut.ListValidationAttempts(utCtx, db.ValidationAttemptQueryFilter{
		OnlyFraudSuspected: true,
	}, nil)
	assert.Nil(err)
	assert.Len(attempts, 1)
	assert.Nil(attempts[0].CredentialID)
	assert.Equal("CERT-1000000000000-00000000", attempts[0].PresentedNumber)

	// 2 - The real number and hash verify cleanly
	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.True(result.IsValid)
	assert.False(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeValid, result.Outcome)
	assert.Empty(result.Warnings)
	assert.NotNil(result.Credential)
	assert.Equal(issued.Number, result.Credential.Number)
	assert.NotNil(result.Subject)
	assert.NotNil(result.Source)
	assert.Equal("Advanced Course", result.Source.Display)

	// 3 - A tampered hash is a fraud-flagged mismatch
	tampered := "0" + issued.IntegrityHash[1:]
	if tampered == issued.IntegrityHash {
		tampered = "1" + issued.IntegrityHash[1:]
	}
	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: tampered,
	}, nil)
	assert.Nil(err)
	assert.False(result.IsValid)
	assert.True(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeHashMismatch, result.Outcome)

	// 4 - Retroactively correcting the course attaches a warning without
	// flipping the verdict
	err = dbClient.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbSession db.Database) error {
			return dbSession.UpdateCompletionStatus(
				ctx, course.ID, models.CompletionStatusDropped,
			)
		},
	)
	assert.Nil(err)

	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.True(result.IsValid)
	assert.Len(result.Warnings, 1)

	// The warning is persisted in the attempt metadata
	attempts = utListAttempts(t, uut, &issued.ID)
	assert.Len(attempts, 3)
	var withWarnings *models.ValidationAttempt
	for idx, attempt := range attempts {
		if len(attempt.Metadata) > 0 {
			withWarnings = &attempts[idx]
		}
	}
	assert.NotNil(withWarnings)
	var metadata models.ValidationAttemptMetadata
	assert.Nil(json.Unmarshal(withWarnings.Metadata, &metadata))
	assert.Len(metadata.Warnings, 1)

	// -------------------------------------------------------------------------
	// 5 - Deactivation fails verification without a fraud flag
	assert.Nil(uut.DeactivateCredential(utCtx, issued.ID, nil))

	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.False(result.IsValid)
	assert.False(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeInactive, result.Outcome)

	assert.Nil(uut.ReactivateCredential(utCtx, issued.ID, nil))

	// 6 - Revocation takes precedence over a hash mismatch
	assert.Nil(uut.RevokeCredential(utCtx, issued.ID, "administrative correction", nil))

	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: tampered,
	}, nil)
	assert.Nil(err)
	assert.False(result.IsValid)
	assert.False(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeRevoked, result.Outcome)
	assert.True(result.Revoked)
	assert.Equal("administrative correction", result.RevokeReason)
	assert.NotNil(result.RevokedAt)

	// Every verification of this credential logged exactly one attempt row
	attempts = utListAttempts(t, uut, &issued.ID)
	assert.Len(attempts, 5)
}

func TestAuthorityVerifyRepointedSourceRecord(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	dbClient, uut := utPrepareAuthority(t, store.CredentialAuthorityParams{
		HashSecret: uuid.NewString(),
	})

	tenantID := uuid.NewString()
	subject, course, issued := utIssueForVerification(t, dbClient, uut, tenantID)

	// 1 - Re-point the course record at another subject. The integrity hash
	// binds the credential's own subject ID, which is unchanged, so only the
	// cross-reference check can notice this.
	var other models.Subject
	err := dbClient.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbSession db.Database) error {
			var err error
			other, err = dbSession.DefineNewSubject(ctx, db.NewSubjectParams{
				TenantID: tenantID, Name: "Other Subject",
			})
			return err
		},
	)
	assert.Nil(err)
	assert.NotEqual(subject.ID, other.ID)
	assert.Nil(dbClient.RunSQLInTransaction(utCtx, func(_ context.Context, tx *gorm.DB) error {
		return tx.Exec(
			"UPDATE completion_records SET subject_id = ? WHERE id = ?", other.ID, course.ID,
		).Error
	}))

	result, err := uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.True(result.IsValid)
	assert.False(result.FraudAlert)
	assert.Contains(
		result.Warnings, "source record no longer references the credential subject",
	)

	// 2 - Moving the record to another tenant adds a second warning
	assert.Nil(dbClient.RunSQLInTransaction(utCtx, func(_ context.Context, tx *gorm.DB) error {
		return tx.Exec(
			"UPDATE completion_records SET tenant_id = ? WHERE id = ?", uuid.NewString(), course.ID,
		).Error
	}))

	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.True(result.IsValid)
	assert.Len(result.Warnings, 2)
}

func TestAuthorityVerifyExpiredCredential(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	dbClient, uut := utPrepareAuthority(t, store.CredentialAuthorityParams{
		HashSecret: uuid.NewString(),
	})

	tenantID := uuid.NewString()

	var subject models.Subject
	var course models.CompletionRecord
	err := dbClient.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbSession db.Database) error {
			var err error
			subject, err = dbSession.DefineNewSubject(ctx, db.NewSubjectParams{
				TenantID: tenantID, Name: "Test Subject",
			})
			if err != nil {
				return err
			}
			course, err = dbSession.DefineNewCompletionRecord(
				ctx, tenantID, subject.ID, "Advanced Course", "", models.CompletionStatusCompleted,
			)
			return err
		},
	)
	assert.Nil(err)

	expiry := time.Now().UTC().Add(-time.Hour)
	issued, err := uut.IssueCredential(utCtx, store.IssueCredentialRequest{
		TenantID:       tenantID,
		SubjectID:      subject.ID,
		Kind:           models.CredentialKindCourseCompletion,
		Title:          "Advanced Course",
		SourceRecordID: course.ID,
		ValidUntil:     &expiry,
	}, nil)
	assert.Nil(err)

	result, err := uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.False(result.IsValid)
	assert.False(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeExpired, result.Outcome)
}

func TestAuthorityVerifyAfterSubjectEdit(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	dbClient, uut := utPrepareAuthority(t, store.CredentialAuthorityParams{
		HashSecret: uuid.NewString(),
	})

	tenantID := uuid.NewString()
	subject, _, issued := utIssueForVerification(t, dbClient, uut, tenantID)

	// Redact the subject. The stored hash still equals the presented hash, but
	// recomputing over the redacted name no longer matches.
	assert.Nil(uut.AnonymizeSubject(utCtx, subject.ID, nil))

	result, err := uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: issued.Number, PresentedHash: issued.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.False(result.IsValid)
	assert.True(result.FraudAlert)
	assert.Equal(models.ValidationOutcomeHashMismatch, result.Outcome)

	// Refreshing the hash restores verifiability with the new link
	refreshed, err := uut.RefreshCredentialHash(utCtx, issued.ID, nil)
	assert.Nil(err)
	assert.NotEqual(issued.IntegrityHash, refreshed.IntegrityHash)

	result, err = uut.VerifyCredential(utCtx, store.VerifyCredentialRequest{
		Number: refreshed.Number, PresentedHash: refreshed.IntegrityHash,
	}, nil)
	assert.Nil(err)
	assert.True(result.IsValid)
}

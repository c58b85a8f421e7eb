package store_test

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/models"
	"github.com/alwitt/attest/store"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestAuthorityInit(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/attest_ut_%s.db", ulid.Make().String())
	dbClient, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	// Case 1: no hash secret is fatal
	_, err = store.NewCredentialAuthority(utCtx, store.CredentialAuthorityParams{
		Persistence: dbClient,
	})
	assert.Error(err)

	// Case 2: no persistence client is fatal
	_, err = store.NewCredentialAuthority(utCtx, store.CredentialAuthorityParams{
		HashSecret: uuid.NewString(),
	})
	assert.Error(err)

	// Case 3: hash secret alone is sufficient; field protection is optional
	_, err = store.NewCredentialAuthority(utCtx, store.CredentialAuthorityParams{
		Persistence: dbClient, HashSecret: uuid.NewString(),
	})
	assert.Nil(err)
}

func TestAuthorityIssueCredential(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	dbClient, uut := utPrepareAuthority(t, store.CredentialAuthorityParams{
		HashSecret:    uuid.NewString(),
		VerifyBaseURL: "https://verify.test/check",
	})

	tenantID := uuid.NewString()

	// Seed a subject with one completed and one in-progress course
	var subject models.Subject
	var completed models.CompletionRecord
	var inProgress models.CompletionRecord
	err := dbClient.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbSession db.Database) error {
			var err error
			subject, err = dbSession.DefineNewSubject(ctx, db.NewSubjectParams{
				TenantID: tenantID, Name: "Test Subject",
			})
			if err != nil {
				return err
			}
			completed, err = dbSession.DefineNewCompletionRecord(
				ctx, tenantID, subject.ID, "Advanced Course", "", models.CompletionStatusCompleted,
			)
			if err != nil {
				return err
			}
			inProgress, err = dbSession.DefineNewCompletionRecord(
				ctx, tenantID, subject.ID, "Basic Course", "", models.CompletionStatusInProgress,
			)
			return err
		},
	)
	assert.Nil(err)

	baseRequest := store.IssueCredentialRequest{
		TenantID:       tenantID,
		SubjectID:      subject.ID,
		Kind:           models.CredentialKindCourseCompletion,
		Title:          "Advanced Course",
		SourceRecordID: completed.ID,
		IssuedBy:       "Registrar",
	}

	// -------------------------------------------------------------------------
	// 1 - Unknown kind is refused
	{
		request := baseRequest
		request.Kind = models.CredentialKindENUMType("DIPLOMA")
		_, err := uut.IssueCredential(utCtx, request, nil)
		assert.ErrorIs(err, store.ErrInvalidKind)
	}

	// 2 - Unknown source record is refused
	{
		request := baseRequest
		request.SourceRecordID = uuid.NewString()
		_, err := uut.IssueCredential(utCtx, request, nil)
		assert.ErrorIs(err, store.ErrSourceRecordNotFound)
	}

	// 3 - Source record belonging to another subject is refused
	{
		var otherSubject models.Subject
		err := dbClient.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbSession db.Database) error {
				var err error
				otherSubject, err = dbSession.DefineNewSubject(ctx, db.NewSubjectParams{
					TenantID: tenantID, Name: "Other Subject",
				})
				return err
			},
		)
		assert.Nil(err)

		request := baseRequest
		request.SubjectID = otherSubject.ID
		_, err = uut.IssueCredential(utCtx, request, nil)
		assert.ErrorIs(err, store.ErrSourceRecordMismatch)
	}

	// 4 - Source record owned by another tenant is refused
	{
		request := baseRequest
		request.TenantID = uuid.NewString()
		_, err := uut.IssueCredential(utCtx, request, nil)
		assert.ErrorIs(err, store.ErrSourceRecordMismatch)
	}

	// 5 - Subject owned by another tenant is refused even when the source
	// record sits in the caller's tenant
	{
		foreignTenantID := uuid.NewString()
		var foreignSubject models.Subject
		var crossRecord models.CompletionRecord
		err := dbClient.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbSession db.Database) error {
				var err error
				foreignSubject, err = dbSession.DefineNewSubject(ctx, db.NewSubjectParams{
					TenantID: foreignTenantID, Name: "Foreign Subject",
				})
				if err != nil {
					return err
				}
				crossRecord, err = dbSession.DefineNewCompletionRecord(
					ctx, tenantID, foreignSubject.ID, "Cross Tenant Course", "",
					models.CompletionStatusCompleted,
				)
				return err
			},
		)
		assert.Nil(err)

		request := baseRequest
		request.SubjectID = foreignSubject.ID
		request.SourceRecordID = crossRecord.ID
		request.Title = "Cross Tenant Course"
		_, err = uut.IssueCredential(utCtx, request, nil)
		assert.ErrorIs(err, store.ErrSubjectTenantMismatch)
	}

	// 6 - A course still in progress is not eligible
	{
		request := baseRequest
		request.SourceRecordID = inProgress.ID
		request.Title = "Basic Course"
		_, err := uut.IssueCredential(utCtx, request, nil)
		assert.ErrorIs(err, store.ErrSourceRecordIneligible)
	}

	// -------------------------------------------------------------------------
	// 7 - Issue the credential
	issued, err := uut.IssueCredential(utCtx, baseRequest, nil)
	assert.Nil(err)
	assert.Regexp(regexp.MustCompile(`^CERT-\d{13}-[0-9A-F]{8}$`), issued.Number)
	assert.NotEmpty(issued.IntegrityHash)
	assert.True(issued.Active)
	assert.False(issued.Revoked)

	// The share link embeds the number and hash
	link, err := url.Parse(issued.ShareLink)
	assert.Nil(err)
	assert.Equal(issued.Number, link.Query().Get("number"))
	assert.Equal(issued.IntegrityHash, link.Query().Get("hash"))

	// 8 - A second credential for the same source record is a duplicate
	_, err = uut.IssueCredential(utCtx, baseRequest, nil)
	assert.ErrorIs(err, store.ErrDuplicateCredential)

	// No extra row was created
	credentials, err := uut.ListCredentials(utCtx, db.CredentialQueryFilter{
		TargetTenantID: &tenantID,
	}, nil)
	assert.Nil(err)
	assert.Len(credentials, 1)

	// -------------------------------------------------------------------------
	// 9 - After revoking, a replacement can be issued
	assert.Nil(uut.RevokeCredential(utCtx, issued.ID, "administrative correction", nil))

	replacement, err := uut.IssueCredential(utCtx, baseRequest, nil)
	assert.Nil(err)
	assert.NotEqual(issued.Number, replacement.Number)

	// 10 - Expiry passes through to the stored credential
	{
		expiry := time.Now().UTC().Add(time.Hour)
		request := baseRequest
		request.SourceRecordID = inProgress.ID
		request.Title = "Basic Course"
		request.ValidUntil = &expiry

		// Complete the course first
		err := dbClient.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbSession db.Database) error {
				return dbSession.UpdateCompletionStatus(
					ctx, inProgress.ID, models.CompletionStatusCompleted,
				)
			},
		)
		assert.Nil(err)

		issued, err := uut.IssueCredential(utCtx, request, nil)
		assert.Nil(err)
		assert.NotNil(issued.ValidUntil)
		assert.Equal(expiry.Unix(), issued.ValidUntil.Unix())
	}
}

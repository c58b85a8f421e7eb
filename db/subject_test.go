package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/models"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestDBSubjectManagement(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	// Create a unique temporary DB file for this test
	testDB := fmt.Sprintf("/tmp/attest_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	// Create a new DB connection
	uut, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)

	// Create database tables
	assert.Nil(uut.RunSQLInTransaction(utCtx, db.DefineTables))

	tenantID := uuid.NewString()

	// -------------------------------------------------------------------------
	// 1 - Defining a subject without required fields must fail
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.DefineNewSubject(ctx, db.NewSubjectParams{TenantID: tenantID})
		return err
	})
	assert.Error(err)

	// 2 - Define a subject with plain text identifiers
	var subject models.Subject
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.DefineNewSubject(ctx, db.NewSubjectParams{
			TenantID:   tenantID,
			Name:       "Test Subject",
			NationalID: "123.456.789-00",
			RegistryID: "12.345.678-9",
		})
		if err != nil {
			return err
		}
		subject = entry
		return nil
	})
	assert.Nil(err)
	assert.NotEmpty(subject.ID)
	assert.False(subject.NationalIDProtected)
	assert.False(subject.Anonymized)

	// 3 - Get back the subject and verify its content
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetSubject(ctx, subject.ID)
		if err != nil {
			return err
		}
		assert.Equal(subject.Name, entry.Name)
		assert.Equal(subject.NationalID, entry.NationalID)
		return nil
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 4 - Replace the identifier fields with protected values
	protectedNationalID := fmt.Sprintf("%x:%x:%x", "iv", "tag", "cipher")
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.UpdateSubjectIdentifiers(ctx, subject.ID, db.SubjectIdentifierUpdate{
			NationalID:          protectedNationalID,
			NationalIDProtected: true,
			RegistryID:          subject.RegistryID,
			RegistryIDProtected: false,
		})
	})
	assert.Nil(err)

	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetSubject(ctx, subject.ID)
		if err != nil {
			return err
		}
		assert.Equal(protectedNationalID, entry.NationalID)
		assert.True(entry.NationalIDProtected)
		assert.False(entry.RegistryIDProtected)
		return nil
	})
	assert.Nil(err)

	// 5 - The identifier update must have left an audit event, findable by the
	// subject reference in its metadata
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		events, err := dbClient.ListSystemEvents(ctx, db.SystemEventQueryFilter{
			EventTypes: []models.SystemEventTypeENUMType{
				models.SystemEventTypeSubjectFieldsProtected,
			},
		})
		if err != nil {
			return err
		}
		assert.Len(events, 1)

		events, err = dbClient.ListSystemEvents(ctx, db.SystemEventQueryFilter{
			TargetSubjectID: &subject.ID,
		})
		if err != nil {
			return err
		}
		assert.Len(events, 1)
		assert.Equal(models.SystemEventTypeSubjectFieldsProtected, events[0].EventType)
		return nil
	})
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 6 - Anonymize the subject
	redactedName := "[REDACTED] 0123456789abcdef"
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.MarkSubjectAnonymized(
			ctx, subject.ID, redactedName, "aaaa", "bbbb", time.Now().UTC(),
		)
	})
	assert.Nil(err)

	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetSubject(ctx, subject.ID)
		if err != nil {
			return err
		}
		assert.Equal(redactedName, entry.Name)
		assert.Equal("aaaa", entry.NationalID)
		assert.Equal("bbbb", entry.RegistryID)
		assert.True(entry.Anonymized)
		assert.NotNil(entry.AnonymizedAt)
		return nil
	})
	assert.Nil(err)

	// 7 - A second anonymization must be refused
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.MarkSubjectAnonymized(
			ctx, subject.ID, redactedName, "cccc", "dddd", time.Now().UTC(),
		)
	})
	assert.Error(err)

	// 8 - The anonymization must have left exactly one audit event
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		events, err := dbClient.ListSystemEvents(ctx, db.SystemEventQueryFilter{
			EventTypes: []models.SystemEventTypeENUMType{
				models.SystemEventTypeSubjectAnonymized,
			},
		})
		if err != nil {
			return err
		}
		assert.Len(events, 1)
		return nil
	})
	assert.Nil(err)
}

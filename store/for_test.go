package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/store"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// utPrepareAuthority create an authority instance backed by a fresh temporary
// sqlite database
func utPrepareAuthority(
	t *testing.T, params store.CredentialAuthorityParams,
) (db.Client, store.CredentialAuthority) {
	assert := assert.New(t)

	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/attest_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	dbClient, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(dbClient.RunSQLInTransaction(utCtx, db.DefineTables))

	params.Persistence = dbClient
	authority, err := store.NewCredentialAuthority(utCtx, params)
	assert.Nil(err)

	return dbClient, authority
}

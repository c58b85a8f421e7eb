// Package attest - offline-verifiable credential issuance and verification
package attest

import (
	"context"
	"fmt"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AuthorityConfig credential authority configuration
type AuthorityConfig struct {
	// HashSecret the credential hashing secret. Required.
	HashSecret string
	// FieldSecret the subject field encryption secret. Empty disables field
	// protection.
	FieldSecret string
	// LegacyDecode pass through stored field values lacking the encrypted
	// wire format
	LegacyDecode bool
	// LegacyHashVerify also accept the retired hash format during verification
	LegacyHashVerify bool
	// VerifyBaseURL base URL for generated share links
	VerifyBaseURL string
}

/*
NewCredentialAuthority initialize a credential authority instance.

Each instance is backed by a SQL database; two instances using the same database
and secrets are essentially copies of each other.

	@param ctx context.Context - execution context
	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@param config AuthorityConfig - authority configuration
	@returns new authority instance
*/
func NewCredentialAuthority(
	ctx context.Context,
	dbDialector gorm.Dialector,
	dbLogLevel logger.LogLevel,
	config AuthorityConfig,
) (store.CredentialAuthority, error) {
	// Prepare persistence
	persistence, err := db.NewConnection(dbDialector, dbLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}

	authority, err := store.NewCredentialAuthority(ctx, store.CredentialAuthorityParams{
		Persistence:      persistence,
		HashSecret:       config.HashSecret,
		FieldSecret:      config.FieldSecret,
		LegacyDecode:     config.LegacyDecode,
		LegacyHashVerify: config.LegacyHashVerify,
		VerifyBaseURL:    config.VerifyBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized credential authority [%w]", err)
	}

	return authority, nil
}

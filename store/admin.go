package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/integrity"
	"github.com/alwitt/attest/models"
)

/*
RevokeCredential revoke a credential

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param reason string - why the credential is revoked
	@param activeDBClient Database - existing database transaction
*/
func (s *credentialAuthority) RevokeCredential(
	ctx context.Context, credentialID string, reason string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.RevokeCredential(dbCtx, credentialID, reason, time.Now().UTC())
		},
	); dbErr != nil {
		return fmt.Errorf("failed to revoke credential %s [%w]", credentialID, dbErr)
	}

	return nil
}

/*
DeactivateCredential administratively deactivate a credential

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param activeDBClient Database - existing database transaction
*/
func (s *credentialAuthority) DeactivateCredential(
	ctx context.Context, credentialID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.SetCredentialActive(dbCtx, credentialID, false)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to deactivate credential %s [%w]", credentialID, dbErr)
	}

	return nil
}

/*
ReactivateCredential administratively reactivate a credential

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param activeDBClient Database - existing database transaction
*/
func (s *credentialAuthority) ReactivateCredential(
	ctx context.Context, credentialID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			return dbClient.SetCredentialActive(dbCtx, credentialID, true)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to reactivate credential %s [%w]", credentialID, dbErr)
	}

	return nil
}

/*
RefreshCredentialHash recompute and store a credential's integrity hash

	@param ctx context.Context - execution context
	@param credentialID string - credential entry ID
	@param activeDBClient Database - existing database transaction
	@returns the updated credential
*/
func (s *credentialAuthority) RefreshCredentialHash(
	ctx context.Context, credentialID string, activeDBClient db.Database,
) (models.Credential, error) {
	var updated models.Credential

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			credential, err := dbClient.GetCredential(dbCtx, credentialID)
			if err != nil {
				return fmt.Errorf("failed to fetch credential %s [%w]", credentialID, err)
			}

			if credential.Revoked {
				return fmt.Errorf("credential %s is revoked", credentialID)
			}

			subject, err := dbClient.GetSubject(dbCtx, credential.SubjectID)
			if err != nil {
				return fmt.Errorf("failed to fetch subject %s [%w]", credential.SubjectID, err)
			}

			newHash, err := s.hashEngine.Compute(dbCtx, integrity.CredentialHashInput{
				Number:      credential.Number,
				SubjectID:   credential.SubjectID,
				SubjectName: subject.Name,
				Kind:        credential.Kind,
				Title:       credential.Title,
				IssuedAt:    credential.IssuedAt,
			})
			if err != nil {
				return fmt.Errorf("failed to compute integrity hash [%w]", err)
			}

			newShareLink := s.BuildShareLink(credential.Number, newHash)
			if err := dbClient.UpdateCredentialHash(
				dbCtx, credentialID, newHash, newShareLink,
			); err != nil {
				return err
			}

			updated, err = dbClient.GetCredential(dbCtx, credentialID)
			return err
		},
	); dbErr != nil {
		return models.Credential{}, fmt.Errorf(
			"failed to refresh hash of credential %s [%w]", credentialID, dbErr,
		)
	}

	return updated, nil
}

/*
ListCredentials list credentials

	@param ctx context.Context - execution context
	@param filters db.CredentialQueryFilter - entry listing filter
	@param activeDBClient Database - existing database transaction
	@returns list of credentials
*/
func (s *credentialAuthority) ListCredentials(
	ctx context.Context, filters db.CredentialQueryFilter, activeDBClient db.Database,
) ([]models.Credential, error) {
	var entries []models.Credential

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			entries, err = dbClient.ListCredentials(dbCtx, filters)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list credentials [%w]", dbErr)
	}

	return entries, nil
}

/*
ListValidationAttempts list validation attempts

	@param ctx context.Context - execution context
	@param filters db.ValidationAttemptQueryFilter - entry listing filter
	@param activeDBClient Database - existing database transaction
	@returns list of attempts
*/
func (s *credentialAuthority) ListValidationAttempts(
	ctx context.Context, filters db.ValidationAttemptQueryFilter, activeDBClient db.Database,
) ([]models.ValidationAttempt, error) {
	var entries []models.ValidationAttempt

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			entries, err = dbClient.ListValidationAttempts(dbCtx, filters)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list validation attempts [%w]", dbErr)
	}

	return entries, nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/encryption"
	"github.com/apex/log"
)

/*
ProtectSubjectIdentifiers encrypt a subject's plain text identifier fields

Identifier values already carrying the encrypted wire format are left alone, so
the call is safe to repeat across a partially migrated data set.

	@param ctx context.Context - execution context
	@param subjectID string - subject entry ID
	@param activeDBClient Database - existing database transaction
*/
func (s *credentialAuthority) ProtectSubjectIdentifiers(
	ctx context.Context, subjectID string, activeDBClient db.Database,
) error {
	logTags := s.GetLogTagsForContext(ctx)

	if !s.fieldCipher.Enabled() {
		return fmt.Errorf("can't protect subject %s [%w]", subjectID, ErrFieldProtectionDisabled)
	}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			subject, err := dbClient.GetSubject(dbCtx, subjectID)
			if err != nil {
				return fmt.Errorf("failed to fetch subject %s [%w]", subjectID, err)
			}

			if subject.Anonymized {
				return fmt.Errorf("subject %s [%w]", subjectID, ErrSubjectAnonymized)
			}

			update := db.SubjectIdentifierUpdate{
				NationalID:          subject.NationalID,
				NationalIDProtected: subject.NationalIDProtected,
				RegistryID:          subject.RegistryID,
				RegistryIDProtected: subject.RegistryIDProtected,
			}

			changed := false
			if subject.NationalID != "" && !subject.NationalIDProtected &&
				!s.fieldCipher.Protected(subject.NationalID) {
				stored, protected, err := s.fieldCipher.Encrypt(dbCtx, subject.NationalID)
				if err != nil {
					return fmt.Errorf("failed to protect national ID [%w]", err)
				}
				update.NationalID = stored
				update.NationalIDProtected = protected
				changed = changed || protected
			}
			if subject.RegistryID != "" && !subject.RegistryIDProtected &&
				!s.fieldCipher.Protected(subject.RegistryID) {
				stored, protected, err := s.fieldCipher.Encrypt(dbCtx, subject.RegistryID)
				if err != nil {
					return fmt.Errorf("failed to protect registry ID [%w]", err)
				}
				update.RegistryID = stored
				update.RegistryIDProtected = protected
				changed = changed || protected
			}

			if !changed {
				log.WithFields(logTags).
					WithField("subject", subjectID).
					Debug("No identifier fields needed protection")
				return nil
			}

			return dbClient.UpdateSubjectIdentifiers(dbCtx, subjectID, update)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to protect subject %s identifiers [%w]", subjectID, dbErr)
	}

	return nil
}

/*
RevealSubjectIdentifiers decrypt a subject's identifier fields

	@param ctx context.Context - execution context
	@param subjectID string - subject entry ID
	@param activeDBClient Database - existing database transaction
	@returns the plain text identifiers
*/
func (s *credentialAuthority) RevealSubjectIdentifiers(
	ctx context.Context, subjectID string, activeDBClient db.Database,
) (SubjectIdentifiers, error) {
	var identifiers SubjectIdentifiers

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			subject, err := dbClient.GetSubject(dbCtx, subjectID)
			if err != nil {
				return fmt.Errorf("failed to fetch subject %s [%w]", subjectID, err)
			}

			if subject.Anonymized {
				return fmt.Errorf("subject %s [%w]", subjectID, ErrSubjectAnonymized)
			}

			// Without a field secret the cipher passes stored values through,
			// which would hand back ciphertext labeled as plain text. Refuse
			// instead when any field is flagged protected.
			if (subject.NationalIDProtected || subject.RegistryIDProtected) &&
				!s.fieldCipher.Enabled() {
				return fmt.Errorf(
					"subject %s has protected identifiers [%w]", subjectID, ErrFieldProtectionDisabled,
				)
			}

			identifiers.NationalID = subject.NationalID
			if subject.NationalIDProtected {
				identifiers.NationalID, err = s.fieldCipher.Decrypt(dbCtx, subject.NationalID)
				if err != nil {
					return fmt.Errorf("failed to reveal national ID [%w]", err)
				}
			}

			identifiers.RegistryID = subject.RegistryID
			if subject.RegistryIDProtected {
				identifiers.RegistryID, err = s.fieldCipher.Decrypt(dbCtx, subject.RegistryID)
				if err != nil {
					return fmt.Errorf("failed to reveal registry ID [%w]", err)
				}
			}

			return nil
		},
	); dbErr != nil {
		return SubjectIdentifiers{}, fmt.Errorf(
			"failed to reveal subject %s identifiers [%w]", subjectID, dbErr,
		)
	}

	return identifiers, nil
}

/*
AnonymizeSubject irreversibly redact a subject's identifying data

The redaction tokens are deterministic digests of the original values, so
duplicate detection across anonymized subjects still works, but the original
values are unrecoverable. Issued credentials and validation history are
untouched.

	@param ctx context.Context - execution context
	@param subjectID string - subject entry ID
	@param activeDBClient Database - existing database transaction
*/
func (s *credentialAuthority) AnonymizeSubject(
	ctx context.Context, subjectID string, activeDBClient db.Database,
) error {
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			subject, err := dbClient.GetSubject(dbCtx, subjectID)
			if err != nil {
				return fmt.Errorf("failed to fetch subject %s [%w]", subjectID, err)
			}

			if subject.Anonymized {
				return fmt.Errorf("subject %s [%w]", subjectID, ErrSubjectAnonymized)
			}

			redactedName := fmt.Sprintf("[REDACTED] %s", encryption.Anonymize(subject.Name))

			return dbClient.MarkSubjectAnonymized(
				dbCtx,
				subjectID,
				redactedName,
				encryption.Anonymize(subject.NationalID),
				encryption.Anonymize(subject.RegistryID),
				time.Now().UTC(),
			)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to anonymize subject %s [%w]", subjectID, dbErr)
	}

	return nil
}

package store

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/integrity"
	"github.com/alwitt/attest/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
VerifyCredential verify a presented credential number and hash

The checks run in a fixed order. The first failing check decides the verdict
and short-circuits the rest; the advisory cross-reference check never flips a
valid verdict.

	@param ctx context.Context - execution context
	@param request VerifyCredentialRequest - verification parameters
	@param activeDBClient Database - existing database transaction
	@returns the verification result
*/
func (s *credentialAuthority) VerifyCredential(
	ctx context.Context, request VerifyCredentialRequest, activeDBClient db.Database,
) (VerificationResult, error) {
	if err := s.validator.Struct(&request); err != nil {
		return VerificationResult{}, fmt.Errorf("verification request is not valid [%w]", err)
	}

	var result VerificationResult

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			result, err = s.runVerification(dbCtx, dbClient, request)
			return err
		},
	); dbErr != nil {
		return VerificationResult{}, fmt.Errorf(
			"failed to verify credential '%s' [%w]", request.Number, dbErr,
		)
	}

	return result, nil
}

// runVerification the verification state machine; always records exactly one
// validation attempt row
func (s *credentialAuthority) runVerification(
	ctx context.Context, dbClient db.Database, request VerifyCredentialRequest,
) (VerificationResult, error) {
	recordAttempt := func(
		credentialID *string,
		outcome models.ValidationOutcomeENUMType,
		fraud bool,
		reason string,
		warnings []string,
	) error {
		attempt := models.ValidationAttempt{
			CredentialID:    credentialID,
			PresentedNumber: request.Number,
			Outcome:         outcome,
			FraudSuspected:  fraud,
			Reason:          reason,
			CallerOrigin:    request.CallerOrigin,
		}
		if len(warnings) > 0 {
			metadata, _ := json.Marshal(&models.ValidationAttemptMetadata{Warnings: warnings})
			attempt.Metadata = datatypes.JSON(metadata)
		}
		if _, err := dbClient.RecordValidationAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("failed to record validation attempt [%w]", err)
		}
		return nil
	}

	// Check 1: the number must resolve
	credential, err := dbClient.GetCredentialByNumber(ctx, request.Number)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return VerificationResult{}, fmt.Errorf("credential lookup failed [%w]", err)
		}
		// The presented number never existed. Strongest fraud signal.
		reason := "credential number not found"
		if err := recordAttempt(nil, models.ValidationOutcomeNotFound, true, reason, nil); err != nil {
			return VerificationResult{}, err
		}
		return VerificationResult{
			IsValid:    false,
			FraudAlert: true,
			Outcome:    models.ValidationOutcomeNotFound,
			Reason:     reason,
		}, nil
	}

	// Check 2: revocation
	if credential.Revoked {
		reason := fmt.Sprintf("credential revoked: %s", credential.RevokeReason)
		if err := recordAttempt(
			&credential.ID, models.ValidationOutcomeRevoked, false, reason, nil,
		); err != nil {
			return VerificationResult{}, err
		}
		return VerificationResult{
			IsValid:      false,
			Outcome:      models.ValidationOutcomeRevoked,
			Reason:       reason,
			Revoked:      true,
			RevokeReason: credential.RevokeReason,
			RevokedAt:    credential.RevokedAt,
			Credential:   &credential,
		}, nil
	}

	// Check 3: administrative active marker
	if !credential.Active {
		reason := "credential is inactive"
		if err := recordAttempt(
			&credential.ID, models.ValidationOutcomeInactive, false, reason, nil,
		); err != nil {
			return VerificationResult{}, err
		}
		return VerificationResult{
			IsValid:    false,
			Outcome:    models.ValidationOutcomeInactive,
			Reason:     reason,
			Credential: &credential,
		}, nil
	}

	// Check 4: expiry
	if credential.Expired(time.Now().UTC()) {
		reason := fmt.Sprintf(
			"credential expired at %s", credential.ValidUntil.UTC().Format(time.RFC3339),
		)
		if err := recordAttempt(
			&credential.ID, models.ValidationOutcomeExpired, false, reason, nil,
		); err != nil {
			return VerificationResult{}, err
		}
		return VerificationResult{
			IsValid:    false,
			Outcome:    models.ValidationOutcomeExpired,
			Reason:     reason,
			Credential: &credential,
		}, nil
	}

	subject, err := dbClient.GetSubject(ctx, credential.SubjectID)
	if err != nil {
		return VerificationResult{}, fmt.Errorf(
			"failed to fetch subject %s [%w]", credential.SubjectID, err,
		)
	}

	// Check 5: integrity. Both comparisons are required. Recomputing from
	// stored fields catches edits to the underlying fields; comparing against
	// the hash stored at issuance catches a forged hash for a real number.
	recomputedMatch, err := s.hashEngine.Verify(ctx, request.PresentedHash, integrity.CredentialHashInput{
		Number:      credential.Number,
		SubjectID:   credential.SubjectID,
		SubjectName: subject.Name,
		Kind:        credential.Kind,
		Title:       credential.Title,
		IssuedAt:    credential.IssuedAt,
	})
	if err != nil {
		return VerificationResult{}, fmt.Errorf("failed to recompute integrity hash [%w]", err)
	}
	storedMatch := subtle.ConstantTimeCompare(
		[]byte(request.PresentedHash), []byte(credential.IntegrityHash),
	) == 1
	if !recomputedMatch || !storedMatch {
		reason := "integrity hash mismatch"
		if err := recordAttempt(
			&credential.ID, models.ValidationOutcomeHashMismatch, true, reason, nil,
		); err != nil {
			return VerificationResult{}, err
		}
		return VerificationResult{
			IsValid:    false,
			FraudAlert: true,
			Outcome:    models.ValidationOutcomeHashMismatch,
			Reason:     reason,
			Credential: &credential,
		}, nil
	}

	// Check 6: advisory cross-reference against the source record. Findings
	// become warnings, never a failed verdict.
	var warnings []string
	var source *VerifiedSource
	check, err := fetchSourceRecord(ctx, dbClient, credential.Kind, credential.SourceRecordID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return VerificationResult{}, fmt.Errorf(
				"failed to resolve source record %s [%w]", credential.SourceRecordID, err,
			)
		}
		warnings = append(warnings, "source record no longer exists")
	} else {
		source = &check.summary
		// The hash binds the credential's own subject ID, so it cannot notice
		// the source record being re-pointed at someone else. Compare the live
		// record against the credential directly.
		if check.subjectID != credential.SubjectID {
			warnings = append(
				warnings, "source record no longer references the credential subject",
			)
		}
		if check.tenantID != credential.TenantID {
			warnings = append(
				warnings, "source record no longer belongs to the credential tenant",
			)
		}
		if !check.eligible {
			warnings = append(
				warnings, "source record no longer satisfies the issuance predicate",
			)
		}
	}

	if err := recordAttempt(
		&credential.ID, models.ValidationOutcomeValid, false, "", warnings,
	); err != nil {
		return VerificationResult{}, err
	}

	return VerificationResult{
		IsValid:    true,
		Outcome:    models.ValidationOutcomeValid,
		Credential: &credential,
		Subject:    &VerifiedSubject{ID: subject.ID, Name: subject.Name},
		Source:     source,
		Warnings:   warnings,
	}, nil
}

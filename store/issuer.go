package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/attest/db"
	"github.com/alwitt/attest/integrity"
	"github.com/alwitt/attest/models"
	"github.com/apex/log"
	"gorm.io/gorm"
)

// numberCollisionRetries bounded retries when a generated credential number
// collides with an existing row
const numberCollisionRetries = 3

// sourceRecordCheck the outcome of resolving a kind-specific source record
type sourceRecordCheck struct {
	subjectID string
	tenantID  string
	// eligible whether the record satisfies its kind's completion predicate
	eligible bool
	summary  VerifiedSource
}

// fetchSourceRecord resolve the source record for a credential kind
//
// The kind dispatch is exhaustive over the closed kind set.
func fetchSourceRecord(
	ctx context.Context,
	dbClient db.Database,
	kind models.CredentialKindENUMType,
	recordID string,
) (sourceRecordCheck, error) {
	switch kind {
	case models.CredentialKindRiteOfPassage:
		record, err := dbClient.GetRiteRecord(ctx, recordID)
		if err != nil {
			return sourceRecordCheck{}, err
		}
		occurredAt := record.OccurredAt
		return sourceRecordCheck{
			subjectID: record.SubjectID,
			tenantID:  record.TenantID,
			eligible:  true,
			summary: VerifiedSource{
				ID: record.ID, Kind: kind, Display: record.Location, OccurredAt: &occurredAt,
			},
		}, nil

	case models.CredentialKindCourseCompletion:
		record, err := dbClient.GetCompletionRecord(ctx, recordID)
		if err != nil {
			return sourceRecordCheck{}, err
		}
		return sourceRecordCheck{
			subjectID: record.SubjectID,
			tenantID:  record.TenantID,
			eligible:  record.Completed(),
			summary: VerifiedSource{
				ID: record.ID, Kind: kind, Display: record.CourseName,
			},
		}, nil

	case models.CredentialKindEventParticipation:
		record, err := dbClient.GetParticipationRecord(ctx, recordID)
		if err != nil {
			return sourceRecordCheck{}, err
		}
		eventDate := record.EventDate
		return sourceRecordCheck{
			subjectID: record.SubjectID,
			tenantID:  record.TenantID,
			eligible:  record.Attended,
			summary: VerifiedSource{
				ID: record.ID, Kind: kind, Display: record.EventTitle, OccurredAt: &eventDate,
			},
		}, nil
	}

	return sourceRecordCheck{}, fmt.Errorf("kind '%s' [%w]", kind, ErrInvalidKind)
}

/*
IssueCredential issue a new credential backed by a source record

	@param ctx context.Context - execution context
	@param request IssueCredentialRequest - issuance parameters
	@param activeDBClient Database - existing database transaction
	@returns the issued credential
*/
func (s *credentialAuthority) IssueCredential(
	ctx context.Context, request IssueCredentialRequest, activeDBClient db.Database,
) (models.Credential, error) {
	logTags := s.GetLogTagsForContext(ctx)

	if err := s.validator.Struct(&request); err != nil {
		if _, kindErr := models.ParseCredentialKind(string(request.Kind)); kindErr != nil {
			return models.Credential{}, fmt.Errorf("kind '%s' [%w]", request.Kind, ErrInvalidKind)
		}
		return models.Credential{}, fmt.Errorf("issuance request is not valid [%w]", err)
	}

	issuedAt := request.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	var issued models.Credential

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			// Source record must exist, match the subject and tenant, and
			// satisfy its kind's completion predicate
			source, err := fetchSourceRecord(dbCtx, dbClient, request.Kind, request.SourceRecordID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("record %s [%w]", request.SourceRecordID, ErrSourceRecordNotFound)
				}
				return fmt.Errorf("failed to resolve source record %s [%w]", request.SourceRecordID, err)
			}
			if source.subjectID != request.SubjectID || source.tenantID != request.TenantID {
				return fmt.Errorf("record %s [%w]", request.SourceRecordID, ErrSourceRecordMismatch)
			}
			if !source.eligible {
				return fmt.Errorf("record %s [%w]", request.SourceRecordID, ErrSourceRecordIneligible)
			}

			subject, err := dbClient.GetSubject(dbCtx, request.SubjectID)
			if err != nil {
				return fmt.Errorf("failed to fetch subject %s [%w]", request.SubjectID, err)
			}
			// The source record carries its own tenant column, so a record in
			// the caller's tenant can still point at another tenant's subject
			if subject.TenantID != request.TenantID {
				return fmt.Errorf("subject %s [%w]", request.SubjectID, ErrSubjectTenantMismatch)
			}

			// Fast-path duplicate check for a clean error. The partial unique
			// index on the credentials table is the authoritative guard.
			if _, err := dbClient.FindUsableCredential(
				dbCtx, request.TenantID, request.SubjectID, request.Kind, request.SourceRecordID,
			); err == nil {
				return fmt.Errorf("record %s [%w]", request.SourceRecordID, ErrDuplicateCredential)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("duplicate credential check failed [%w]", err)
			}

			// Number collisions across concurrent issuers surface as unique
			// violations on insert; retry with a fresh number
			for attempt := 0; attempt < numberCollisionRetries; attempt++ {
				number, err := s.numberGen.Next()
				if err != nil {
					return fmt.Errorf("failed to generate credential number [%w]", err)
				}

				hash, err := s.hashEngine.Compute(dbCtx, integrity.CredentialHashInput{
					Number:      number,
					SubjectID:   subject.ID,
					SubjectName: subject.Name,
					Kind:        request.Kind,
					Title:       request.Title,
					IssuedAt:    issuedAt,
				})
				if err != nil {
					return fmt.Errorf("failed to compute integrity hash [%w]", err)
				}

				issued, err = dbClient.InsertCredential(dbCtx, models.Credential{
					TenantID:       request.TenantID,
					Number:         number,
					Kind:           request.Kind,
					Title:          request.Title,
					Description:    request.Description,
					SubjectID:      subject.ID,
					SourceRecordID: request.SourceRecordID,
					IssuedAt:       issuedAt,
					IssuedBy:       request.IssuedBy,
					ValidUntil:     request.ValidUntil,
					IntegrityHash:  hash,
					ShareLink:      s.BuildShareLink(number, hash),
					Active:         true,
				})
				if err == nil {
					return nil
				}
				if db.IsUniqueViolation(err, "credentials.number") {
					log.WithFields(logTags).
						WithField("number", number).
						Warn("Credential number collision. Retrying with a fresh number")
					continue
				}
				if db.IsUniqueViolation(err, "credentials.subject_id") {
					// A concurrent issuance won the race
					return fmt.Errorf("record %s [%w]", request.SourceRecordID, ErrDuplicateCredential)
				}
				return fmt.Errorf("failed to insert new credential [%w]", err)
			}

			return fmt.Errorf(
				"exhausted %d credential number attempts", numberCollisionRetries,
			)
		},
	); dbErr != nil {
		return models.Credential{}, fmt.Errorf(
			"failed to issue '%s' credential for subject %s [%w]",
			request.Kind,
			request.SubjectID,
			dbErr,
		)
	}

	return issued, nil
}

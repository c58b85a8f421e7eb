// Package integrity - keyed credential hashing and credential numbering
package integrity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/alwitt/attest/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// CredentialHashInput the canonical field set bound by the integrity hash
//
// The subject display name and the title are part of the hash on purpose: a
// forged edit of the printed name or title no longer matches the hash the
// verifier recomputes from stored fields.
type CredentialHashInput struct {
	// Number the credential number
	Number string `validate:"required"`
	// SubjectID the subject entry ID
	SubjectID string `validate:"required"`
	// SubjectName the subject display name
	SubjectName string `validate:"required"`
	// Kind the credential kind
	Kind models.CredentialKindENUMType `validate:"required,credential_kind"`
	// Title the credential display title
	Title string `validate:"required"`
	// IssuedAt the issuance timestamp
	IssuedAt time.Time `validate:"required"`
}

/*
HashEngine computes and verifies the keyed integrity hash binding a
credential's identity and display fields.

This is a shared-secret scheme, not an asymmetric signature: any holder of the
secret can produce valid hashes. The engine never logs or returns the secret.
*/
type HashEngine interface {
	/*
		Compute compute the integrity hash over the canonical field set

			@param ctx context.Context - execution context
			@param input CredentialHashInput - the credential fields to bind
			@returns lowercase hex hash
	*/
	Compute(ctx context.Context, input CredentialHashInput) (string, error)

	/*
		Verify recompute the hash and compare against a presented value

		Comparison is constant-time.

			@param ctx context.Context - execution context
			@param presented string - the hash presented by the caller
			@param input CredentialHashInput - the credential fields to bind
			@returns whether the presented hash matches
	*/
	Verify(ctx context.Context, presented string, input CredentialHashInput) (bool, error)

	/*
		ComputeLegacy compute the retired first-generation hash format

		Verify-only support for credentials issued before the display fields
		were added to the hash. New hashes are never written in this format.

			@param ctx context.Context - execution context
			@param input CredentialHashInput - the credential fields to bind
			@returns lowercase hex hash in the legacy format
	*/
	ComputeLegacy(ctx context.Context, input CredentialHashInput) string
}

// hashEngine implements HashEngine
type hashEngine struct {
	goutils.Component

	secret []byte

	// legacyVerify also accept the retired hash format during Verify
	legacyVerify bool

	validator *validator.Validate
}

// HashEngineParams hash engine init parameters
type HashEngineParams struct {
	// Secret the process-wide hashing secret. Must be configured; issuing or
	// verifying without one is meaningless.
	Secret string `validate:"required"`
	// LegacyVerify accept the retired hash format during verification
	LegacyVerify bool
}

/*
NewHashEngine define new credential hash engine

	@param ctx context.Context - execution context
	@param params HashEngineParams - engine parameters
	@returns engine instance
*/
func NewHashEngine(_ context.Context, params HashEngineParams) (HashEngine, error) {
	logTags := log.Fields{"module": "integrity", "component": "hash-engine"}

	instance := &hashEngine{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		secret:       []byte(params.Secret),
		legacyVerify: params.LegacyVerify,
		validator:    validator.New(),
	}
	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid engine init parameters [%w]", err)
	}

	return instance, nil
}

// canonicalEncode length-prefixed encoding of the hash input fields
//
// Length prefixes remove boundary ambiguity between adjacent fields, so no
// combination of field contents can collide with a different field split.
func canonicalEncode(input CredentialHashInput) []byte {
	fields := []string{
		input.Number,
		input.SubjectID,
		normalizeDisplayField(input.SubjectName),
		string(input.Kind),
		normalizeDisplayField(input.Title),
		input.IssuedAt.UTC().Format(time.RFC3339Nano),
	}

	var encoded []byte
	var lenBuf [binary.MaxVarintLen64]byte
	for _, field := range fields {
		n := binary.PutUvarint(lenBuf[:], uint64(len(field)))
		encoded = append(encoded, lenBuf[:n]...)
		encoded = append(encoded, field...)
	}
	return encoded
}

// normalizeDisplayField canonical form of human-entered display fields
//
// Trimming and case folding keeps the hash stable across cosmetic re-entry of
// the same name or title, while still changing on any substantive edit.
func normalizeDisplayField(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

/*
Compute compute the integrity hash over the canonical field set

	@param ctx context.Context - execution context
	@param input CredentialHashInput - the credential fields to bind
	@returns lowercase hex hash
*/
func (e *hashEngine) Compute(_ context.Context, input CredentialHashInput) (string, error) {
	if err := e.validator.Struct(&input); err != nil {
		return "", fmt.Errorf("hash input is not valid [%w]", err)
	}

	mac := hmac.New(sha256.New, e.secret)
	mac.Write(canonicalEncode(input))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

/*
Verify recompute the hash and compare against a presented value

Comparison is constant-time.

	@param ctx context.Context - execution context
	@param presented string - the hash presented by the caller
	@param input CredentialHashInput - the credential fields to bind
	@returns whether the presented hash matches
*/
func (e *hashEngine) Verify(
	ctx context.Context, presented string, input CredentialHashInput,
) (bool, error) {
	expected, err := e.Compute(ctx, input)
	if err != nil {
		return false, fmt.Errorf("failed to recompute integrity hash [%w]", err)
	}

	presentedBytes, err := hex.DecodeString(presented)
	if err != nil {
		// Not hex, so it can never match either format
		return false, nil
	}

	expectedBytes, _ := hex.DecodeString(expected)
	if hmac.Equal(presentedBytes, expectedBytes) {
		return true, nil
	}

	if e.legacyVerify {
		legacyBytes, _ := hex.DecodeString(e.ComputeLegacy(ctx, input))
		if subtle.ConstantTimeCompare(presentedBytes, legacyBytes) == 1 {
			return true, nil
		}
	}

	return false, nil
}

/*
ComputeLegacy compute the retired first-generation hash format

	@param ctx context.Context - execution context
	@param input CredentialHashInput - the credential fields to bind
	@returns lowercase hex hash in the legacy format
*/
func (e *hashEngine) ComputeLegacy(_ context.Context, input CredentialHashInput) string {
	// The first-generation format: dash-joined fields without the display
	// name and title, hashed together with the secret.
	data := fmt.Sprintf(
		"%s-%s-%s-%s-%s",
		input.Number,
		input.SubjectID,
		input.Kind,
		input.IssuedAt.UTC().Format(time.RFC3339Nano),
		e.secret,
	)
	digest := sha256.Sum256([]byte(data))
	return hex.EncodeToString(digest[:])
}

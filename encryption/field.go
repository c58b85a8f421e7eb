// Package encryption - field level protection for regulated personal data
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrNotEncrypted the value does not have the encrypted field wire format
	ErrNotEncrypted = errors.New("value is not an encrypted field")
	// ErrDecryptFailed authentication of the cipher text failed
	ErrDecryptFailed = errors.New("encrypted field failed authentication")
)

// fieldKeySalt fixed application-level scrypt salt; must not change once data
// has been written, or previously encrypted fields become unreadable
const fieldKeySalt = "salt"

// ivLength the per-call initialization vector length in bytes
const ivLength = 16

// scrypt work parameters for stretching the field secret into an AES-256 key
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

/*
FieldCipher symmetric authenticated encryption of individual sensitive fields.

Values are stored as `<iv-hex>:<tag-hex>:<ciphertext-hex>`, all lowercase hex.
A fresh random IV is generated per call. When no secret is configured the
cipher operates in an explicit degraded mode: values pass through unchanged and
callers are responsible for flagging the field as unprotected.
*/
type FieldCipher interface {
	/*
		Encrypt encrypt one field value

			@param ctx context.Context - execution context
			@param plainText string - the value to protect
			@returns the storable value, and whether it is actually protected
	*/
	Encrypt(ctx context.Context, plainText string) (string, bool, error)

	/*
		Decrypt decrypt one stored field value

			@param ctx context.Context - execution context
			@param stored string - the stored value
			@returns the plain text value
	*/
	Decrypt(ctx context.Context, stored string) (string, error)

	/*
		Protected check whether a stored value has the encrypted field wire format

			@param stored string - the stored value
			@returns whether the value looks encrypted
	*/
	Protected(stored string) bool

	/*
		Enabled whether a field secret is configured

			@returns false when operating in degraded pass-through mode
	*/
	Enabled() bool
}

// fieldCipher implements FieldCipher
type fieldCipher struct {
	goutils.Component

	aead cipher.AEAD

	// legacyDecode pass through values lacking the wire format instead of
	// erroring, for mixed-era data sets
	legacyDecode bool
}

// FieldCipherParams field cipher init parameters
type FieldCipherParams struct {
	// Secret the field encryption secret. Empty enables degraded mode.
	Secret string
	// LegacyDecode treat values lacking the wire format as pre-encryption
	// plain text and return them unchanged
	LegacyDecode bool
}

/*
NewFieldCipher define new field cipher

	@param ctx context.Context - execution context
	@param params FieldCipherParams - cipher parameters
	@returns cipher instance
*/
func NewFieldCipher(_ context.Context, params FieldCipherParams) (FieldCipher, error) {
	logTags := log.Fields{"module": "encryption", "component": "field-cipher"}

	instance := &fieldCipher{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		legacyDecode: params.LegacyDecode,
	}

	if params.Secret == "" {
		// Degraded mode. Fields pass through unprotected.
		log.WithFields(logTags).Warn("No field secret configured. Field protection disabled")
		return instance, nil
	}

	// Stretch the secret into a fixed-length key
	key, err := scrypt.Key(
		[]byte(params.Secret), []byte(fieldKeySalt), scryptN, scryptR, scryptP, scryptKeyLen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to stretch field secret [%w]", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare AES cipher [%w]", err)
	}

	instance.aead, err = cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare GCM mode [%w]", err)
	}

	return instance, nil
}

/*
Encrypt encrypt one field value

	@param ctx context.Context - execution context
	@param plainText string - the value to protect
	@returns the storable value, and whether it is actually protected
*/
func (c *fieldCipher) Encrypt(_ context.Context, plainText string) (string, bool, error) {
	if c.aead == nil || plainText == "" {
		return plainText, false, nil
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", false, fmt.Errorf("failed to generate field IV [%w]", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plainText), nil)

	// Seal appends the auth tag after the cipher text
	tagStart := len(sealed) - c.aead.Overhead()
	cipherText := sealed[:tagStart]
	tag := sealed[tagStart:]

	stored := fmt.Sprintf(
		"%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(cipherText),
	)
	return stored, true, nil
}

/*
Decrypt decrypt one stored field value

	@param ctx context.Context - execution context
	@param stored string - the stored value
	@returns the plain text value
*/
func (c *fieldCipher) Decrypt(ctx context.Context, stored string) (string, error) {
	logTags := c.GetLogTagsForContext(ctx)

	if c.aead == nil || stored == "" {
		return stored, nil
	}

	iv, tag, cipherText, err := parseEncryptedField(stored)
	if err != nil {
		if c.legacyDecode {
			// Mixed-era data set. Treat as pre-encryption plain text.
			log.WithFields(logTags).Warn("Stored field lacks encrypted format. Passing through")
			return stored, nil
		}
		return "", fmt.Errorf("stored field is malformed [%w]", err)
	}

	sealed := make([]byte, 0, len(cipherText)+len(tag))
	sealed = append(sealed, cipherText...)
	sealed = append(sealed, tag...)

	plainText, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		// Fail closed. Never return unauthenticated bytes.
		log.WithError(err).WithFields(logTags).Error("Field decryption failed authentication")
		return "", fmt.Errorf("field decrypt rejected [%w]", ErrDecryptFailed)
	}

	return string(plainText), nil
}

/*
Protected check whether a stored value has the encrypted field wire format

	@param stored string - the stored value
	@returns whether the value looks encrypted
*/
func (c *fieldCipher) Protected(stored string) bool {
	_, _, _, err := parseEncryptedField(stored)
	return err == nil
}

/*
Enabled whether a field secret is configured

	@returns false when operating in degraded pass-through mode
*/
func (c *fieldCipher) Enabled() bool {
	return c.aead != nil
}

// parseEncryptedField split a stored value into IV, auth tag, and cipher text
func parseEncryptedField(stored string) ([]byte, []byte, []byte, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf(
			"expected three segments, found %d [%w]", len(parts), ErrNotEncrypted,
		)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return nil, nil, nil, fmt.Errorf("IV segment is not valid [%w]", ErrNotEncrypted)
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) == 0 {
		return nil, nil, nil, fmt.Errorf("tag segment is not valid [%w]", ErrNotEncrypted)
	}

	cipherText, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cipher text segment is not valid [%w]", ErrNotEncrypted)
	}

	return iv, tag, cipherText, nil
}

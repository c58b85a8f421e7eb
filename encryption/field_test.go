package encryption_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alwitt/attest/encryption"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// alterHexChar change one hex character of a stored segment to a different
// valid hex character
func alterHexChar(value string, idx int) string {
	replacement := byte('0')
	if value[idx] == '0' {
		replacement = '1'
	}
	return value[:idx] + string(replacement) + value[idx+1:]
}

func TestFieldCipherRoundTrip(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut, err := encryption.NewFieldCipher(utCtx, encryption.FieldCipherParams{
		Secret: uuid.NewString(),
	})
	assert.Nil(err)
	assert.True(uut.Enabled())

	// Case 1: round trip a normal value
	plain := uuid.NewString()
	stored, protected, err := uut.Encrypt(utCtx, plain)
	assert.Nil(err)
	assert.True(protected)
	assert.NotEqual(plain, stored)
	assert.True(uut.Protected(stored))

	recovered, err := uut.Decrypt(utCtx, stored)
	assert.Nil(err)
	assert.Equal(plain, recovered)

	// Case 2: stored format has three lowercase hex segments
	segments := strings.Split(stored, ":")
	assert.Len(segments, 3)
	assert.Len(segments[0], 32)
	assert.Equal(strings.ToLower(stored), stored)

	// Case 3: fresh IV per call, same plain text encrypts differently
	stored2, protected, err := uut.Encrypt(utCtx, plain)
	assert.Nil(err)
	assert.True(protected)
	assert.NotEqual(stored, stored2)

	// Case 4: empty value passes through unprotected
	storedEmpty, protected, err := uut.Encrypt(utCtx, "")
	assert.Nil(err)
	assert.False(protected)
	assert.Empty(storedEmpty)
}

func TestFieldCipherTamperDetection(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut, err := encryption.NewFieldCipher(utCtx, encryption.FieldCipherParams{
		Secret: uuid.NewString(),
	})
	assert.Nil(err)

	stored, _, err := uut.Encrypt(utCtx, uuid.NewString())
	assert.Nil(err)
	segments := strings.Split(stored, ":")

	// Case 1: altered IV fails closed
	tampered := strings.Join(
		[]string{alterHexChar(segments[0], 4), segments[1], segments[2]}, ":",
	)
	_, err = uut.Decrypt(utCtx, tampered)
	assert.ErrorIs(err, encryption.ErrDecryptFailed)

	// Case 2: altered auth tag fails closed
	tampered = strings.Join(
		[]string{segments[0], alterHexChar(segments[1], 4), segments[2]}, ":",
	)
	_, err = uut.Decrypt(utCtx, tampered)
	assert.ErrorIs(err, encryption.ErrDecryptFailed)

	// Case 3: altered cipher text fails closed
	tampered = strings.Join(
		[]string{segments[0], segments[1], alterHexChar(segments[2], 4)}, ":",
	)
	_, err = uut.Decrypt(utCtx, tampered)
	assert.ErrorIs(err, encryption.ErrDecryptFailed)

	// Case 4: a cipher with a different secret can not decrypt
	other, err := encryption.NewFieldCipher(utCtx, encryption.FieldCipherParams{
		Secret: uuid.NewString(),
	})
	assert.Nil(err)
	_, err = other.Decrypt(utCtx, stored)
	assert.ErrorIs(err, encryption.ErrDecryptFailed)
}

func TestFieldCipherLegacyDecodeGating(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	plainValue := "plain-value-from-before-encryption"

	// Case 1: without legacy decode, an unencrypted value is an error
	strict, err := encryption.NewFieldCipher(utCtx, encryption.FieldCipherParams{
		Secret: uuid.NewString(),
	})
	assert.Nil(err)
	_, err = strict.Decrypt(utCtx, plainValue)
	assert.ErrorIs(err, encryption.ErrNotEncrypted)
	assert.False(strict.Protected(plainValue))

	// Case 2: with legacy decode, the value passes through unchanged
	lenient, err := encryption.NewFieldCipher(utCtx, encryption.FieldCipherParams{
		Secret: uuid.NewString(), LegacyDecode: true,
	})
	assert.Nil(err)
	recovered, err := lenient.Decrypt(utCtx, plainValue)
	assert.Nil(err)
	assert.Equal(plainValue, recovered)

	// Case 3: legacy decode never bypasses authentication of well formed values
	stored, _, err := lenient.Encrypt(utCtx, uuid.NewString())
	assert.Nil(err)
	segments := strings.Split(stored, ":")
	tampered := strings.Join(
		[]string{segments[0], segments[1], alterHexChar(segments[2], 0)}, ":",
	)
	_, err = lenient.Decrypt(utCtx, tampered)
	assert.ErrorIs(err, encryption.ErrDecryptFailed)
}

func TestFieldCipherDegradedMode(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut, err := encryption.NewFieldCipher(utCtx, encryption.FieldCipherParams{})
	assert.Nil(err)
	assert.False(uut.Enabled())

	// Values pass through unprotected in both directions
	plain := uuid.NewString()
	stored, protected, err := uut.Encrypt(utCtx, plain)
	assert.Nil(err)
	assert.False(protected)
	assert.Equal(plain, stored)

	recovered, err := uut.Decrypt(utCtx, plain)
	assert.Nil(err)
	assert.Equal(plain, recovered)
}

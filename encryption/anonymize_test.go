package encryption_test

import (
	"regexp"
	"testing"

	"github.com/alwitt/attest/encryption"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAnonymize(t *testing.T) {
	assert := assert.New(t)

	// Case 1: deterministic across calls
	value := uuid.NewString()
	token := encryption.Anonymize(value)
	assert.Equal(token, encryption.Anonymize(value))

	// Case 2: always 16 lowercase hex characters
	tokenFormat := regexp.MustCompile(`^[0-9a-f]{16}$`)
	assert.Regexp(tokenFormat, token)
	assert.Regexp(tokenFormat, encryption.Anonymize("x"))
	assert.Regexp(tokenFormat, encryption.Anonymize("a much longer value with spaces and symbols !@#"))

	// Case 3: different inputs give different tokens
	assert.NotEqual(token, encryption.Anonymize(uuid.NewString()))

	// Case 4: empty input passes through
	assert.Empty(encryption.Anonymize(""))
}

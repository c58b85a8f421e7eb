package integrity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// numberRandomBytes entropy bytes in the random tail of a credential number
const numberRandomBytes = 4

/*
NumberGenerator produces externally displayable credential numbers.

The namespace is a millisecond timestamp plus a random tail, which makes
collisions unlikely but not impossible under concurrent issuance; the unique
constraint on the credentials table is the authoritative guarantee, and
issuance retries on a constraint violation with a fresh number.
*/
type NumberGenerator interface {
	/*
		Next generate a new credential number

			@returns a new human-transcribable credential number
	*/
	Next() (string, error)
}

// numberGenerator implements NumberGenerator
type numberGenerator struct{}

/*
NewNumberGenerator define new credential number generator

	@returns generator instance
*/
func NewNumberGenerator() NumberGenerator {
	return &numberGenerator{}
}

/*
Next generate a new credential number

	@returns a new human-transcribable credential number
*/
func (g *numberGenerator) Next() (string, error) {
	tail := make([]byte, numberRandomBytes)
	if _, err := rand.Read(tail); err != nil {
		return "", fmt.Errorf("failed to read credential number entropy [%w]", err)
	}
	return fmt.Sprintf(
		"CERT-%d-%s", time.Now().UnixMilli(), strings.ToUpper(hex.EncodeToString(tail)),
	), nil
}

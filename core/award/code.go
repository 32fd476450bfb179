package award

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var alphabetLen = big.NewInt(int64(len(codeAlphabet)))

// GenerateCode returns a random redemption code of CodeLength uppercase alphanumeric characters.
func GenerateCode() (string, error) {
	var sb strings.Builder
	sb.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeCode trims and uppercases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

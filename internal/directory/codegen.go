package directory

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// CodeLength is the fixed length of every public code.
const CodeLength = 6

var codeRE = regexp.MustCompile(`^[0-9A-F]{6}$`)

// GenerateCode draws one candidate code: the first six hex digits of a
// fresh UUIDv4, uppercased. Candidates carry no relation to the identity
// they end up assigned to; uniqueness is enforced by the directory's
// unique index, not here.
func GenerateCode() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:CodeLength/2]))
}

// NormalizeCode case-folds s and reports whether it has the shape of a
// code. It says nothing about whether the code was ever issued.
func NormalizeCode(s string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(s))
	return c, codeRE.MatchString(c)
}

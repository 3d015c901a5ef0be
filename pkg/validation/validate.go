package validation

import (
	"regexp"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

const (
	digits       = "0123456789"
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" + digits
)

// ValidMCN reports whether catalog is a media catalog number: 13 decimal digits.
func ValidMCN(catalog string) bool {
	return len(catalog) == consts.CD_MCN_SIZE && validateIdentifierRune(catalog, digits)
}

// ValidISRC reports whether isrc is a 12 character recording code: a two letter country,
// a three character registrant, a two digit year and a five digit designation. Letters may
// be lower case.
func ValidISRC(isrc string) bool {
	if len(isrc) != consts.CD_ISRC_SIZE {
		return false
	}
	isrc = strings.ToUpper(isrc)
	return validateIdentifierRune(isrc[:2], alphanumeric[:26]) &&
		validateIdentifierRune(isrc[2:5], alphanumeric) &&
		validateIdentifierRune(isrc[5:], digits)
}

// validateIdentifierRune checks each rune in the identifier against the allowed set.
func validateIdentifierRune(identifier string, allowed string) bool {
	for _, r := range identifier {
		if !strings.ContainsRune(allowed, r) {
			return false
		}
	}
	return true
}

var isrcRegexp = regexp.MustCompile(`^[A-Za-z]{2}[A-Za-z0-9]{3}[0-9]{7}$`)

// validateISRCRegex is the regular expression form of ValidISRC.
func validateISRCRegex(isrc string) bool {
	return isrcRegexp.MatchString(isrc)
}

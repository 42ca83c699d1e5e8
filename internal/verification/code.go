package verification

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// alphabet is the fixed symbol set challenge codes are drawn from. The
// symbols are chosen to survive Roblox's bio filtering and to be easy to
// paste verbatim.
var alphabet = []rune{'⭐', '🔥', '💎', '🚀', '🌙', '⚡', '🍀', '🎯', '🌊', '🎁'}

// codeLength is the number of symbols in a challenge code.
const codeLength = 4

// GenerateCode draws a random symbol sequence from the alphabet.
func GenerateCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteRune(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize canonicalizes text for the substring comparison: NFC plus
// removal of the variation selectors (U+FE0E, U+FE0F) some platforms
// insert after emoji.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if r == '\ufe0e' || r == '\ufe0f' {
			return -1
		}
		return r
	}, s)
}

// ContainsAlphabetSymbol reports whether the text holds any symbol from
// the challenge alphabet at all, distinguishing "no marker in bio" from
// "marker present but wrong code".
func ContainsAlphabetSymbol(s string) bool {
	for _, r := range s {
		for _, a := range alphabet {
			if r == a {
				return true
			}
		}
	}
	return false
}

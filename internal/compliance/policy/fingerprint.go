package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// wordPattern matches the word tokens used for forbidden-word checks:
// runs of letters, digits, and underscores.
var wordPattern = regexp.MustCompile(`[\pL\pN_]+`)

// CanonicalContent serializes content to its canonical JSON form.
// encoding/json writes map keys in sorted order, so the result is
// stable across calls and processes and serves both the text-based
// checks and the cache fingerprint.
func CanonicalContent(content map[string]any) (string, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return "", errors.Wrap(err, "serializing content")
	}
	return string(b), nil
}

// Fingerprint returns a stable digest of the canonical content string.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) map[string]struct{} {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		out[tok] = struct{}{}
	}
	return out
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

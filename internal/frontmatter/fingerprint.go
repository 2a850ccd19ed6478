package frontmatter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inful/mdfp"
)

// Field names managed by this package.
const (
	FieldUID         = "uid"
	FieldLastmod     = "lastmod"
	FieldFingerprint = mdfp.FingerprintField
)

var errNilFields = errors.New("fields map is nil")

// Fingerprint hashes the document, ignoring the fields that change without
// the content changing (fingerprint, uid, lastmod).
func Fingerprint(fields map[string]any, body []byte) (string, error) {
	if fields == nil {
		return "", errNilFields
	}
	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case FieldFingerprint, FieldUID, FieldLastmod:
			continue
		}
		hashed[k] = v
	}

	fm := ""
	if len(hashed) > 0 {
		raw, err := Serialize(hashed)
		if err != nil {
			return "", err
		}
		fm = strings.TrimSuffix(string(raw), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(fm, string(body)), nil
}

// Stamp stores the current fingerprint and, when it differs from the stored
// one, moves lastmod to now (UTC, YYYY-MM-DD).
func Stamp(fields map[string]any, body []byte, now time.Time) (changed bool, err error) {
	if fields == nil {
		return false, errNilFields
	}
	previous, _ := fields[FieldFingerprint].(string)
	fp, err := Fingerprint(fields, body)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(previous) == fp {
		return false, nil
	}
	fields[FieldFingerprint] = fp
	fields[FieldLastmod] = now.UTC().Format("2006-01-02")
	return true, nil
}

// EnsureUID keeps an existing uid or assigns a new random one.
func EnsureUID(fields map[string]any) (string, error) {
	if fields == nil {
		return "", errNilFields
	}
	if v, ok := fields[FieldUID]; ok {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s, nil
		}
	}
	id := uuid.NewString()
	fields[FieldUID] = id
	return id, nil
}

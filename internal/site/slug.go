package site

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugAllowed   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	slugSeparator = regexp.MustCompile(`-+`)
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ErrEmptySlug is returned when nothing usable is left of the input.
var ErrEmptySlug = errors.New("empty slug")

// NormalizeSlug turns a model supplied slug or title into a URL-safe file stem:
// diacritics stripped, lower case, runs of anything else collapsed into one hyphen.
// Letters outside ASCII after stripping are dropped.
func NormalizeSlug(input string) (string, error) {
	s := stripDiacritics(strings.TrimSpace(input))
	s = strings.TrimSuffix(strings.ToLower(s), ".html")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(slugSeparator.ReplaceAllString(b.String(), "-"), "-")
	if out == "" {
		return "", ErrEmptySlug
	}
	if !slugAllowed.MatchString(out) {
		return "", errors.New("slug contains invalid characters")
	}
	return out, nil
}

// SlugFor normalizes slug, falling back to the title and finally to fallback.
func SlugFor(slug, title, fallback string) string {
	if s, err := NormalizeSlug(slug); err == nil {
		return s
	}
	if s, err := NormalizeSlug(title); err == nil {
		return s
	}
	return fallback
}

// SlugSet hands out unique slugs by suffixing repeats with -2, -3, ...
type SlugSet struct {
	seen map[string]struct{}
}

// NewSlugSet creates an empty set.
func NewSlugSet() *SlugSet {
	return &SlugSet{seen: make(map[string]struct{})}
}

// Claim reserves slug, returning a suffixed variant if it is already taken.
func (s *SlugSet) Claim(slug string) string {
	candidate := slug
	for i := 2; ; i++ {
		if _, taken := s.seen[candidate]; !taken {
			s.seen[candidate] = struct{}{}
			return candidate
		}
		candidate = slug + "-" + strconv.Itoa(i)
	}
}

// TrimDescription cuts a description to MaxDescriptionLength runes on a word boundary
// when possible.
func TrimDescription(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}
	r := []rune(s)[:MaxDescriptionLength]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > MaxDescriptionLength/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

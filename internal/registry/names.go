package registry

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNameLength bounds project names so they stay usable as file names.
const maxNameLength = 64

// maxSuggestions caps the "did you mean" list.
const maxSuggestions = 3

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

var slugSeparators = regexp.MustCompile(`[^a-z0-9_]+`)

// ValidateName checks that name is a lowercase slug.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a letter or digit and contain only lowercase letters, digits, '-' and '_' (max %d)",
			ErrInvalidName, name, maxNameLength)
	}
	return nil
}

// Slugify derives a valid project name from free text such as a directory
// name. Accents are folded to their base letters.
func Slugify(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}

	slug := slugSeparators.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-_")
	if len(slug) > maxNameLength {
		slug = strings.TrimRight(slug[:maxNameLength], "-_")
	}
	return slug
}

// Suggest returns up to three registered names that fuzzily match query,
// best match first.
func Suggest(query string, names []string) []string {
	if query == "" || len(names) == 0 {
		return nil
	}

	var out []string
	for _, m := range fuzzy.Find(strings.ToLower(query), names) {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			return out
		}
	}

	// No subsequence match: fall back to names sharing the first three characters.
	if len(out) == 0 {
		prefix := strings.ToLower(query)
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		for _, n := range names {
			if strings.HasPrefix(n, prefix) {
				out = append(out, n)
				if len(out) == maxSuggestions {
					break
				}
			}
		}
	}
	return out
}

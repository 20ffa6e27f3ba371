// Package identity derives the actor slug from a human-readable title.
package identity

import (
	"strings"
	"unicode"

	"github.com/spachava753/actorgen/internal/models"
)

// DefaultTitleSuffix is appended to a site name to form the actor title.
const DefaultTitleSuffix = " Scraper"

// Slug lowercases title and replaces every inner run of whitespace with a single
// hyphen. Leading and trailing whitespace is dropped rather than turned into a
// hyphen, so " A" gives "a", not "-a"; a slug never starts or ends with a
// hyphen it did not already have. Slug(Slug(s)) == Slug(s).
func Slug(title string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(title), unicode.IsSpace), "-")
}

// New builds the actor identity for a site name.
func New(name, suffix string) models.ActorIdentity {
	title := name + suffix
	return models.ActorIdentity{
		Title: title,
		Slug:  Slug(title),
	}
}

package domain

import (
	"strings"
	"unicode"
)

// NotProvided is substituted for blank query fields in prompts.
const NotProvided = "Not provided"

// Blank reports whether s is empty or whitespace only.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// OrNotProvided returns the trimmed value or NotProvided when blank.
func OrNotProvided(s string) string {
	if Blank(s) {
		return NotProvided
	}
	return strings.TrimSpace(s)
}

// ValidateSearch requires at least one of name, state, or additional info.
// RefineInfo alone is not enough to identify anyone.
func ValidateSearch(q SearchQuery) error {
	if Blank(q.Name) && Blank(q.State) && Blank(q.AdditionalInfo) {
		return NewValidationError("name|state|additionalInfo", "", ErrInvalidRequest)
	}
	return nil
}

// DeriveID returns the oracle-supplied id when present, otherwise the name
// with all whitespace removed and lowercased ("Jane Doe" -> "janedoe").
func DeriveID(id, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name))
}

// ValidateID rejects ids that cannot be cache keys.
func ValidateID(id string) error {
	if Blank(id) {
		return NewValidationError("id", id, ErrInvalidRequest)
	}
	return nil
}

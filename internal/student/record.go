package student

import (
	"regexp"
	"strings"
)

var nationalIDPattern = regexp.MustCompile(`^\d{14}$`)

// IdentifierField selects which record field keys gateway calls.
type IdentifierField string

const (
	ByNationalID IdentifierField = "national_id"
	BySeatNumber IdentifierField = "seat_number"
)

// Record is the profile snapshot of one student as known to the backend.
type Record struct {
	NationalID  string
	ArabicName  string
	SeatNumber  string
	StudentCode string
	EnglishName []string
	PhotoURL    string
	// CanEditAgain is nil when the backend did not send the flag.
	CanEditAgain *bool
}

// ValidNationalID reports whether id is exactly 14 ASCII digits.
func ValidNationalID(id string) bool {
	return nationalIDPattern.MatchString(id)
}

// Loadable reports whether the record carries a usable national ID.
func (r Record) Loadable() bool {
	return ValidNationalID(r.NationalID)
}

// Identifier returns the value used to key gateway calls. An empty national ID
// falls back to the seat number and vice versa.
func (r Record) Identifier(field IdentifierField) string {
	if field == BySeatNumber {
		if r.SeatNumber != "" {
			return r.SeatNumber
		}
		return r.NationalID
	}
	if r.NationalID != "" {
		return r.NationalID
	}
	return r.SeatNumber
}

// FullEnglishName joins the name parts with single spaces.
func (r Record) FullEnglishName() string {
	return strings.Join(r.EnglishName, " ")
}

// NamePart returns the i-th English name part or "".
func (r Record) NamePart(i int) string {
	if i < 0 || i >= len(r.EnglishName) {
		return ""
	}
	return r.EnglishName[i]
}

// HasPhoto reports whether a committed photo reference exists.
func (r Record) HasPhoto() bool {
	return r.PhotoURL != ""
}

// PhotoFilename is the name the backend stores the photo under.
func (r Record) PhotoFilename() string {
	return r.StudentCode + ".jpg"
}

// SplitName splits an english_name value on single spaces, dropping empty segments.
func SplitName(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, " ") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

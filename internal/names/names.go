// Package names normalizes and validates the romanized name parts a student enters.
package names

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Slot identifies one name input.
type Slot string

const (
	First  Slot = "first"
	Second Slot = "second"
	Third  Slot = "third"
)

// Slots lists the name inputs in display order.
var Slots = []Slot{First, Second, Third}

func (s Slot) label() string {
	switch s {
	case First:
		return "first name"
	case Second:
		return "second name"
	case Third:
		return "third name"
	}
	return "name"
}

var (
	ErrEmptyField        = errors.New("empty field")
	ErrNonEnglish        = errors.New("non-english characters")
	ErrInvalidCharacters = errors.New("invalid characters")
)

// Error is a failed validation of one slot.
type Error struct {
	Slot    Slot
	Kind    error
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Slot, e.Kind) }

func (e *Error) Unwrap() error { return e.Kind }

// Normalize lowercases raw and upper-cases the first letter of every
// space-separated segment.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	segments := strings.Split(strings.ToLower(raw), " ")
	for i, seg := range segments {
		r, size := utf8.DecodeRuneInString(seg)
		if size == 0 {
			continue
		}
		segments[i] = string(unicode.ToUpper(r)) + seg[size:]
	}
	return strings.Join(segments, " ")
}

func isArabic(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// ValidatePart checks one name part. On failure it reports a message for slot
// through report and returns an *Error.
func ValidatePart(name string, slot Slot, report func(Slot, string)) error {
	var kind error
	var msg string
	switch {
	case name == "":
		kind = ErrEmptyField
		msg = fmt.Sprintf("Please fill in the %s in English.", slot.label())
	case strings.IndexFunc(name, isArabic) >= 0:
		kind = ErrNonEnglish
		msg = fmt.Sprintf("Please enter the %s in English (English letters only).", slot.label())
	case strings.IndexFunc(name, func(r rune) bool { return !isASCIILetter(r) }) >= 0:
		kind = ErrInvalidCharacters
		msg = fmt.Sprintf("Please enter the %s using English letters only (no digits, spaces or symbols).", slot.label())
	default:
		return nil
	}
	if report != nil {
		report(slot, msg)
	}
	return &Error{Slot: slot, Kind: kind, Message: msg}
}

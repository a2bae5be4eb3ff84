// Package identity cross-checks a registration form against the payload
// read from the barcode of a national identity document.
//
// Payload layout, fields separated by '@' and optionally single-quoted:
//
//	0 procedure number
//	1 last name(s)
//	2 first name(s)
//	3 sex (M/F)
//	4 document number
//	5 copy letter
//	6 birth date DD/MM/YYYY
//	7 issue date
//	8 tax id
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"trip-share-backend/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minFields   = 9
	adultAge    = 18
	birthLayout = "02/01/2006"
)

var (
	nonAlnum  = regexp.MustCompile(`[^A-Z0-9]+`)
	nonDigits = regexp.MustCompile(`\D`)
)

// Document holds the fields parsed from a payload
type Document struct {
	FirstName      string
	LastName       string
	Sex            string
	DocumentNumber string
	BirthDate      models.Date
}

// Profile is what the user typed in the registration form
type Profile struct {
	FirstName      string
	LastName       string
	Sex            string
	DocumentNumber string
	BirthDate      models.Date
}

// FormatError means the payload does not have enough fields
type FormatError struct {
	Fields int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid document payload: expected at least %d fields, got %d", minFields, e.Fields)
}

// DateError means the birth date field could not be parsed
type DateError struct {
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid birth date %q in document payload", e.Value)
}

// UnderageError rejects applicants younger than 18
type UnderageError struct {
	Age int
}

func (e *UnderageError) Error() string {
	return fmt.Sprintf("applicant must be at least %d years old", adultAge)
}

// MismatchError names the first form field that disagrees with the document
type MismatchError struct {
	Field string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s does not match the identity document", e.Field)
}

// ParsePayload splits a raw barcode payload into its fields
func ParsePayload(payload string) (*Document, error) {
	parts := strings.Split(payload, "@")
	if len(parts) < minFields {
		return nil, &FormatError{Fields: len(parts)}
	}

	field := func(i int) string {
		return strings.Trim(strings.TrimSpace(parts[i]), "'")
	}

	birthRaw := field(6)
	birth, err := time.Parse(birthLayout, birthRaw)
	if err != nil {
		return nil, &DateError{Value: birthRaw}
	}

	return &Document{
		LastName:       field(1),
		FirstName:      strings.Join(strings.Fields(field(2)), " "),
		Sex:            field(3),
		DocumentNumber: field(4),
		BirthDate:      models.DateOf(birth),
	}, nil
}

// Verify parses the payload and checks every profile field against it.
// It returns the parsed document and the age on success.
func Verify(p Profile, payload string, now time.Time) (*Document, int, error) {
	doc, err := ParsePayload(payload)
	if err != nil {
		return nil, 0, err
	}

	switch {
	case !NamesMatch(p.FirstName, doc.FirstName):
		return nil, 0, &MismatchError{Field: "first_name"}
	case !NamesMatch(p.LastName, doc.LastName):
		return nil, 0, &MismatchError{Field: "last_name"}
	case sexCode(p.Sex) != sexCode(doc.Sex):
		return nil, 0, &MismatchError{Field: "sex"}
	case digits(p.DocumentNumber) != digits(doc.DocumentNumber):
		return nil, 0, &MismatchError{Field: "document_number"}
	case !p.BirthDate.Equal(doc.BirthDate.Time):
		return nil, 0, &MismatchError{Field: "birth_date"}
	}

	age := Age(doc.BirthDate, now)
	if age < adultAge {
		return nil, 0, &UnderageError{Age: age}
	}
	return doc, age, nil
}

// NamesMatch accepts one side's tokens being a subset of the other's, so a
// person may enter one or two of several legal names.
func NamesMatch(entered, parsed string) bool {
	a := tokenSet(entered)
	b := tokenSet(parsed)
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return subset(a, b) || subset(b, a)
}

// Age returns full years elapsed between birth and now
func Age(birth models.Date, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

func tokenSet(value string) map[string]struct{} {
	cleaned := nonAlnum.ReplaceAllString(strings.ToUpper(stripAccents(value)), " ")
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		set[tok] = struct{}{}
	}
	return set
}

func subset(a, b map[string]struct{}) bool {
	for tok := range a {
		if _, ok := b[tok]; !ok {
			return false
		}
	}
	return true
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func sexCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return s[:1]
}

func digits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

package api

import (
	"errors"
	"strings"
	"unicode"
)

const incodeLen = 3

var (
	ErrPostcodeMissing  = errors.New("postcode missing")
	ErrPostcodeTooShort = errors.New("postcode too short")
	ErrPostcodeInvalid  = errors.New("postcode has characters other than A-Z and 0-9")
)

// ParsePostcode normalizes raw and splits it into outcode and incode.
func ParsePostcode(raw string) (outcode, incode string, err error) {
	if raw == "" {
		return "", "", ErrPostcodeMissing
	}
	pc := Normalize(raw)
	if len(pc) < minPostcodeLen {
		return "", "", ErrPostcodeTooShort
	}
	if !validChars(pc) {
		return "", "", ErrPostcodeInvalid
	}
	outcode, incode = Split(pc)
	return outcode, incode, nil
}

// Normalize strips all whitespace from a postcode and upper-cases it.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// Split cuts a normalized postcode into outcode and the 3-character incode. The caller has checked
// the length.
func Split(pc string) (outcode, incode string) {
	return pc[:len(pc)-incodeLen], pc[len(pc)-incodeLen:]
}

// validChars reports whether pc holds only A-Z and 0-9.
func validChars(pc string) bool {
	for i := 0; i < len(pc); i++ {
		c := pc[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

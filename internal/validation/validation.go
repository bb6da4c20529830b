// Package validation provides input validation functions.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/fenilsonani/listmunge/internal/charset"
)

var (
	// ErrInvalidListName is returned when a list name format is invalid
	ErrInvalidListName = errors.New("invalid list name: must be 1-64 characters and valid email local part")
	// ErrInvalidListID is returned when a List-Id is not an RFC 2919 identifier
	ErrInvalidListID = errors.New("invalid list id: must be a dotted list-label.domain identifier")
	// ErrInvalidDomain is returned when domain name is invalid
	ErrInvalidDomain = errors.New("invalid domain: must be valid domain name")
	// ErrInvalidCharset is returned for charset labels that cannot be resolved
	ErrInvalidCharset = errors.New("invalid charset: unknown charset label")
	// ErrInvalidLanguage is returned for malformed language codes
	ErrInvalidLanguage = errors.New("invalid language code: must look like en or pt_BR")
	// ErrInvalidPrefix is returned for subject prefixes that cannot go in a header
	ErrInvalidPrefix = errors.New("invalid subject prefix: must not contain line breaks")
)

const (
	// List name constraints (RFC 5321 local-part)
	minListNameLength = 1
	maxListNameLength = 64

	// Domain name constraints (RFC 1035)
	maxDomainLength = 253

	// RFC 2919 limits the list id to 255 characters
	maxListIDLength = 255
)

var (
	// RFC 5321 compliant local-part pattern (simplified for common use cases)
	// Allows: alphanumeric, dot, hyphen, underscore, plus
	// Does not allow: leading/trailing dots
	listNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?$`)

	// RFC 1035 compliant domain name pattern
	// Labels: 1-63 chars, alphanumeric and hyphen, not starting/ending with hyphen
	domainPattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

	languagePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}([_-][a-zA-Z]{2,4})?$`)
)

// ListName checks if a list name meets format and length requirements
func ListName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < minListNameLength || len(name) > maxListNameLength {
		return ErrInvalidListName
	}

	if !listNamePattern.MatchString(name) {
		return ErrInvalidListName
	}

	if strings.Contains(name, "..") {
		return ErrInvalidListName // Consecutive dots not allowed
	}

	return nil
}

// ListID checks a List-Id value. The optional phrase before the angle
// brackets is ignored; the identifier itself needs at least two labels.
func ListID(id string) error {
	bare := BareListID(id)
	if bare == "" || len(bare) > maxListIDLength || !strings.Contains(bare, ".") {
		return ErrInvalidListID
	}
	if err := Domain(bare); err != nil {
		return ErrInvalidListID
	}
	return nil
}

// BareListID returns the identifier between the angle brackets of a List-Id
// value, lower-cased. A value without brackets is returned trimmed.
func BareListID(id string) string {
	id = strings.TrimSpace(id)
	if start := strings.LastIndexByte(id, '<'); start >= 0 {
		end := strings.IndexByte(id[start:], '>')
		if end < 0 {
			return ""
		}
		id = id[start+1 : start+end]
	}
	return strings.ToLower(strings.TrimSpace(id))
}

// Domain checks if a domain name is valid according to RFC 1035
func Domain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))

	if len(domain) == 0 || len(domain) > maxDomainLength {
		return ErrInvalidDomain
	}

	if !domainPattern.MatchString(domain) {
		return ErrInvalidDomain
	}

	// Additional validation: check each label length (max 63 chars per RFC 1035)
	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return ErrInvalidDomain
		}
	}

	return nil
}

// Charset checks that a charset label can be used for encoding
func Charset(label string) error {
	if strings.TrimSpace(label) == "" || !charset.Known(label) {
		return ErrInvalidCharset
	}
	return nil
}

// LanguageCode checks the shape of a language code
func LanguageCode(code string) error {
	if !languagePattern.MatchString(code) {
		return ErrInvalidLanguage
	}
	return nil
}

// SubjectPrefix checks a subject prefix. An empty prefix is allowed and
// disables rewriting.
func SubjectPrefix(prefix string) error {
	if strings.ContainsAny(prefix, "\r\n") {
		return ErrInvalidPrefix
	}
	return nil
}

package api

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxIdentityLen is the maximum length for identity IDs and client identities.
const maxIdentityLen = 120

// maxTokenLen is the maximum length for push registration tokens.
const maxTokenLen = 4096

// maxMessageBodyLen is the maximum length for outbound message bodies.
const maxMessageBodyLen = 1600

// maxURLLen is the maximum length for URL fields.
const maxURLLen = 2048

// phoneRe validates dialable numbers: optional +, digits only.
var phoneRe = regexp.MustCompile(`^\+?[0-9]{5,20}$`)

// validateRequiredStringLen checks that a non-empty string does not exceed
// maxLen runes. Returns an error message if invalid, empty string if OK.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateStringLen checks that a string does not exceed maxLen runes.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateDialTarget checks a call or message destination: either a phone
// number or a "client:" prefixed app identity.
func validateDialTarget(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if id, ok := strings.CutPrefix(value, "client:"); ok {
		return validateRequiredStringLen(field, id, maxIdentityLen)
	}
	if !phoneRe.MatchString(value) {
		return field + " is not a dialable number"
	}
	return ""
}

// validateURL checks that an optional URL field is an absolute http(s) URL.
func validateURL(field, value string) string {
	if value == "" {
		return ""
	}
	if len(value) > maxURLLen {
		return field + " exceeds maximum length"
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return field + " is not a valid http(s) url"
	}
	return ""
}

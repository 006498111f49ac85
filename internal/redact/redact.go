// Package redact scrubs sensitive fragments from strings before they
// are logged. Error messages routinely embed connection strings, file
// paths and tokens; everything the log pipeline sees goes through here
// first.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

var (
	// Database connection strings with embedded credentials.
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)

	// Secrets assigned in key=value or key: value form.
	secretRegex = regexp.MustCompile(`(?i)(password|secret|token|api[_-]?key)(['"\s:=]+)[^'"&\s]{3,}`)

	// The standard three-part base64url JWT shape.
	jwtRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Absolute filesystem paths, e.g. uploaded document locations.
	pathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	placeholders = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder + "@"},
		{secretRegex, "$1$2" + RedactedKeyPlaceholder},
		{jwtRegex, RedactedJWTPlaceholder},
		{pathRegex, RedactedPathPlaceholder},
	}
)

// String returns s with all sensitive fragments replaced.
func String(s string) string {
	for _, p := range placeholders {
		s = p.pattern.ReplaceAllString(s, p.replacement)
	}
	return s
}

// Error returns the redacted message of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

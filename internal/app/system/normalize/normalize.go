// Package normalize canonicalises user-entered values before they are
// compared or stored.
package normalize

import "strings"

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Username trims and lowercases a username. The result is the key of the
// reservation document, so two usernames that differ only by case collide.
func Username(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Mobile trims a mobile number. No format is enforced.
func Mobile(s string) string {
	return strings.TrimSpace(s)
}

// Identifier trims a sign-in identifier (email or username). Case is kept so
// that an email identifier reaches the identity provider as entered.
func Identifier(s string) string {
	return strings.TrimSpace(s)
}

// IsEmail reports whether a sign-in identifier should be treated as an email
// address rather than a username.
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// View maps the ?view= query parameter onto one of the two start-screen views.
func View(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "signin") {
		return "signin"
	}
	return "signup"
}

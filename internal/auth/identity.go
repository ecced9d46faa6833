// Package auth provides accounts, password hashing and bearer tokens for the
// leaderboard.
package auth

import "strings"

// AnonymousName is shown for users without a usable name.
const AnonymousName = "Anonymous"

// Identity is the authenticated user a score is attributed to.
type Identity struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	UserID          string `json:"user_id,omitempty"`
	Username        string `json:"username,omitempty"`
}

// Anonymous is the identity of a visitor who has not logged in.
var Anonymous = Identity{}

// DisplayName picks the name shown on the leaderboard: the chosen username,
// then the local part of the email address, then AnonymousName.
func DisplayName(username, email string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && local != "" {
		return local
	}
	return AnonymousName
}

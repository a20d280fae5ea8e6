package domain

import "strings"

// EndUserType distinguishes customer contacts from support teammates.
type EndUserType string

// End user types.
const (
	EndUserTypeUser     EndUserType = "user"
	EndUserTypeTeammate EndUserType = "teammate"
)

// EndUser is a conversation participant resolved to a tenant-scoped person record.
// (AppID, Email) is unique; resolution is find-or-create.
type EndUser struct {
	ID        int64
	AppID     string
	Email     string
	FirstName string
	LastName  string
	Type      EndUserType
}

// SplitName splits a display name into first and last name.
// The first word is the first name and the remainder is the last name.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// NormaliseEmail lowercases and trims an email address for lookups.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

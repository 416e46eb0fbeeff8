package models

// User is the application's view of the signed-in person: the identity
// fields merged with the profile row stored under the identity id.
type User map[string]any

// ID returns the "id" field as a string, or "" when absent.
func (u User) ID() string {
	if u == nil {
		return ""
	}
	id, _ := u["id"].(string)
	return id
}

// MergeProfile returns identity's fields overlaid with profile's fields.
// Profile values win on key collision. Neither input is modified.
func MergeProfile(identity User, profile map[string]any) User {
	merged := make(User, len(identity)+len(profile))
	for k, v := range identity {
		merged[k] = v
	}
	for k, v := range profile {
		merged[k] = v
	}
	return merged
}

// CheckResult is the outcome of a session check.
type CheckResult struct {
	Authenticated bool
	User          User
}

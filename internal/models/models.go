package models

import "time"

// Role tells who produced a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
	RoleError  Role = "error"
)

// Message is one entry of a conversation transcript
type Message struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// User is the profile returned by the backend for the signed-in account
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Picture   string `json:"picture,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	LastLogin string `json:"last_login,omitempty"`
}

// Permissions reports which Gmail scopes the user granted at sign-in.
type Permissions struct {
	HasPermissions bool     `json:"has_permissions"`
	GrantedScopes  []string `json:"granted_scopes"`
	MissingScopes  []string `json:"missing_scopes"`
}

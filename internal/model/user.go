package model

import "time"

// User represents an account as stored in the `users` table. Visitors own
// the visits they create; admins are the privileged actors of the
// scheduling rules.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique email address.
//  Name         – display name used in greetings and emails.
//  PasswordHash – bcrypt hashed password.
//  Role         – VISITOR or ADMIN.
//  NotifyEmail  – opt-in flag for reminder and status-change emails.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	NotifyEmail  bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Account roles.
const (
	RoleVisitor = "VISITOR"
	RoleAdmin   = "ADMIN"
)

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the issued token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

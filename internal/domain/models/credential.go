// internal/domain/models/credential.go
package models

import "time"

// Credential is owned by the self-hosted identity provider. Nothing outside
// the localidp package reads PasswordHash.
type Credential struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"` // lowercased, unique
	PasswordHash string    `bson:"password_hash"`
	Disabled     bool      `bson:"disabled"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// OrphanedCredential records an identity-provider account whose profile
// write failed and whose immediate rollback also failed. The reconciler
// worker retries the deletion until it succeeds.
type OrphanedCredential struct {
	AccountID string     `bson:"_id"`
	Email     string     `bson:"email"`
	Username  string     `bson:"username"`
	Reason    string     `bson:"reason"`
	Attempts  int        `bson:"attempts"`
	LastError string     `bson:"last_error,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
	RetriedAt *time.Time `bson:"retried_at,omitempty"`
}

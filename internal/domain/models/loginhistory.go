// internal/domain/models/loginhistory.go
package models

import "time"

// LoginRecord captures a single successful sign-in.
// CreatedAt is indexed for recent-activity queries.
type LoginRecord struct {
	AccountID string    `bson:"account_id"`
	CreatedAt time.Time `bson:"created_at"`
	IP        string    `bson:"ip"`
	Method    string    `bson:"method"` // "email" | "username" | "signup"
}

// internal/domain/models/account.go
package models

// Terminology: Account Identifiers
//   - AccountID / accountID / uid: the opaque id issued by the identity provider
//   - Username: the human-readable handle; stored lowercased, unique via the usernames collection

// Account is the profile document in the users collection, keyed by the
// identity provider's account id. Username is a denormalized copy; the
// Reservation in the usernames collection is authoritative for uniqueness.
type Account struct {
	ID        string `bson:"_id" json:"id"`
	FirstName string `bson:"first_name" json:"first_name"`
	LastName  string `bson:"last_name" json:"last_name"`
	Username  string `bson:"username" json:"username"` // lowercased
	Email     string `bson:"email" json:"email"`       // lowercased
	Mobile    string `bson:"mobile" json:"mobile"`
	CreatedAt string `bson:"created_at" json:"created_at"` // ISO-8601, UTC
}

// Reservation asserts that a lowercased username is taken and names the
// account that owns it. Its existence is the uniqueness guarantee.
type Reservation struct {
	Username string `bson:"_id" json:"username"`
	UID      string `bson:"uid" json:"uid"`
}

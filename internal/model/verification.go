package model

import "time"

// VerificationToken is the single live email-verification token of a user,
// stored in `verification_tokens` and keyed by uid.  Once Verified is set the
// document is kept forever and the token can no longer be redeemed.
type VerificationToken struct {
	UID        string     `bson:"uid"`
	Email      string     `bson:"email"`
	Token      string     `bson:"token"`
	ExpiresAt  time.Time  `bson:"expiresAt"`
	Verified   bool       `bson:"verified"`
	CreatedAt  time.Time  `bson:"createdAt"`
	VerifiedAt *time.Time `bson:"verifiedAt,omitempty"`
}

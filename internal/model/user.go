package model

import "time"

// Profile mirrors a document in the `users` collection.  The uid is the
// identity provider's user id and is unique; email is kept unique by the
// account service, which removes stale documents for the same address.
//
// CreatedAt and UpdatedAt are regional wall-clock strings (see Timestamp),
// matching documents written by earlier versions of the backend.  The reset
// fields are only present while a password reset is outstanding.
type Profile struct {
	UID          string     `bson:"uid" json:"uid"`
	Email        string     `bson:"email" json:"email"`
	Country      string     `bson:"country" json:"country"`
	Institution  string     `bson:"institution" json:"institution"`
	LastIP       string     `bson:"lastIp,omitempty" json:"lastIp,omitempty"`
	SignupIP     string     `bson:"signupIp,omitempty" json:"signupIp,omitempty"`
	CreatedAt    string     `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt    string     `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	ResetToken   string     `bson:"resetToken,omitempty" json:"-"`
	ResetExpires *time.Time `bson:"resetExpires,omitempty" json:"-"`
}

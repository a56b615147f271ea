package model

// Audit actions written to the `logins` collection.
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionChangePassword = "change_password"
	ActionResetPassword  = "reset_password"
)

// AuditRecord is an append-only entry in the `logins` collection.
type AuditRecord struct {
	UID       string `bson:"uid" json:"uid"`
	Email     string `bson:"email" json:"email"`
	IP        string `bson:"ip" json:"ip"`
	Action    string `bson:"action" json:"action"`
	Timestamp string `bson:"timestamp" json:"timestamp"`
}

package model

// Email types recorded in `sending_emails`.
const (
	EmailVerification  = "verification"
	EmailConfirmation  = "confirmation"
	EmailResetPassword = "reset_password"
)

// SentEmail is the best-effort log of a message accepted by the SMTP relay.
type SentEmail struct {
	To        string `bson:"to"`
	Subject   string `bson:"subject"`
	Content   string `bson:"content"`
	Type      string `bson:"type"`
	MessageID string `bson:"messageId"`
	Timestamp string `bson:"timestamp"`
}

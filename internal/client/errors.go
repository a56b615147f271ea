package client

import (
	"errors"
	"strings"
)

// GenericMessage is shown for provider codes with no specific copy.
const GenericMessage = "Something went wrong. Please try again."

var friendly = []struct {
	code string
	msg  string
}{
	{"auth/invalid-credential", "Incorrect email or password."},
	{"auth/user-not-found", "Account not found."},
	{"auth/wrong-password", "Incorrect password."},
	{"auth/email-already-in-use", "This email is already registered."},
	{"auth/too-many-requests", "Too many attempts. Please try again later."},
	{"auth/invalid-email", "Please enter a valid email address."},
}

// Form validation and flow errors.  Their text is shown as is.
var (
	ErrPasswordMismatch = errors.New("Passwords do not match.")
	ErrEmailInUse       = errors.New("This email address is already in use.")
	ErrNotVerified      = errors.New("Please verify your email address before logging in.")
	ErrMissingEmail     = errors.New("Please enter your email address to reset password.")
	ErrBusy             = errors.New("Another request is in progress.")
)

// FriendlyError turns err into the message the form shows.  Provider codes
// are matched by substring, the way they appear in SDK error messages.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	m := err.Error()
	for _, f := range friendly {
		if strings.Contains(m, f.code) {
			return f.msg
		}
	}
	return GenericMessage
}

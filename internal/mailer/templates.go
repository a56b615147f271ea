package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/iliyamo/superta-auth/internal/model"
)

const brand = "SuperTA"

var (
	verificationHTML = template.Must(template.New("verification").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #4a90e2;">Verify Your Email Address</h2>
    <p>Thank you for signing up! Please verify your email address by clicking the button below:</p>
    <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #4a90e2; color: white; text-decoration: none; border-radius: 4px; margin: 16px 0;">Verify Email</a>
    <p>Or copy and paste this link into your browser:</p>
    <p style="color: #666; word-break: break-all;">{{.Link}}</p>
    <p style="color: #999; font-size: 12px; margin-top: 32px;">If you didn't create an account, you can safely ignore this email.</p>
</div>
`))

	resetHTML = template.Must(template.New("reset").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #4a90e2;">Reset Your Password</h2>
    <p>You have requested to reset your password. Click the button below to proceed:</p>
    <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #d9534f; color: white; text-decoration: none; border-radius: 4px; margin: 16px 0;">Reset Password</a>
    <p>Or copy and paste this link:</p>
    <p style="color: #666; word-break: break-all;">{{.Link}}</p>
    <p style="color: #999; font-size: 12px;">Link expires in {{.Expiry}}.</p>
</div>
`))
)

// VerificationMessage renders the email-verification mail for link.
func VerificationMessage(to, link string) (Message, error) {
	html, err := render(verificationHTML, map[string]string{"Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{
		FromName: brand,
		To:       to,
		Subject:  "Verify Your Email Address",
		Text:     "Please verify your email address by clicking this link: " + link,
		HTML:     html,
		Type:     model.EmailVerification,
	}, nil
}

// ConfirmationMessage renders the welcome mail.  senderName is shown as the
// display name of the From header.
func ConfirmationMessage(to, senderName string) Message {
	return Message{
		FromName: senderName,
		To:       to,
		Subject:  "Welcome to Our Service!",
		Text:     "Thank you for signing up! We are excited to have you on board.",
		HTML:     "<b>Thank you for signing up!</b><br>We are excited to have you on board.",
		Type:     model.EmailConfirmation,
	}
}

// ResetMessage renders the password-reset mail; expiry is the human-readable
// lifetime of the link, e.g. "1 hour".
func ResetMessage(to, link, expiry string) (Message, error) {
	html, err := render(resetHTML, map[string]string{"Link": link, "Expiry": expiry})
	if err != nil {
		return Message{}, err
	}
	return Message{
		FromName: brand + " Support",
		To:       to,
		Subject:  "Reset Your Password",
		Text:     "You requested a password reset. Click here to reset your password: " + link,
		HTML:     html,
		Type:     model.EmailResetPassword,
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

package mailer

import (
	"fmt"
	"html"
	"strings"
)

// PasswordResetSubject is the subject line of the reset mail.
const PasswordResetSubject = "Password reset - ChaosCompany"

// ResetLink builds the public URL a reset token is redeemed at.
func ResetLink(publicBaseURL, token string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/accounts/reset-password/" + token + "/"
}

// PasswordResetMessage composes the reset mail for username.
func PasswordResetMessage(to, username, link string) Message {
	text := fmt.Sprintf(`Hello %s,

We received a request to reset your password. Follow the link below to continue:
%s

This link expires in 1 hour. If you did not ask for this, ignore this email.

The ChaosCompany team.
`, username, link)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hello %s,</p>
	<p>We received a request to reset your password. Follow the link below to continue:</p>
	<p><a href="%s">Reset password</a></p>
	<p style="word-break: break-all; font-size: 12px; color: #666;">%s</p>
	<p><strong>This link expires in 1 hour.</strong> If you did not ask for this, ignore this email.</p>
	<p>The ChaosCompany team.</p>
</body>
</html>
`, html.EscapeString(username), html.EscapeString(link), html.EscapeString(link))

	return Message{To: to, Subject: PasswordResetSubject, TextBody: text, HTMLBody: htmlBody}
}

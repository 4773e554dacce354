package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"time"
)

var resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<p>Hi {{.Name}},</p>
<p>We received a request to reset the password for your CineVault account.</p>
<p>If you made this request, use the link below to choose a new password:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This link expires in {{.TTL}} and can only be used once.</p>
<p>If you did not request a reset you can ignore this email.</p>
`))

const resetText = `Hi %s,

We received a request to reset the password for your CineVault account.
Open the link below to choose a new password:

%s

This link expires in %s and can only be used once.
If you did not request a reset you can ignore this email.
`

// PasswordResetEmail renders the reset message for one recipient.
func PasswordResetEmail(to, name, link string, ttl time.Duration) (Email, error) {
	if name == "" {
		name = "there"
	}
	data := struct {
		Name string
		Link string
		TTL  string
	}{name, link, humanDuration(ttl)}

	var html bytes.Buffer
	if err := resetHTML.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render reset email: %w", err)
	}

	return Email{
		To:       []string{to},
		Subject:  "Reset your CineVault password",
		Body:     fmt.Sprintf(resetText, data.Name, data.Link, data.TTL),
		HTMLBody: html.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	case d%time.Minute == 0 && d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
